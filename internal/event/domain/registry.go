package domain

// Nombres de evento reconocidos por el pipeline. Cualquier otro nombre se
// rechaza con ErrInvalidEvent en el normalizador, nunca más adentro.
const (
	EventPageView             = "PageView"
	EventViewContent          = "ViewContent"
	EventViewCategory         = "ViewCategory"
	EventSearch               = "Search"
	EventAddToCart            = "AddToCart"
	EventAddToWishlist        = "AddToWishlist"
	EventInitiateCheckout     = "InitiateCheckout"
	EventAddPaymentInfo       = "AddPaymentInfo"
	EventPurchase             = "Purchase"
	EventLead                 = "Lead"
	EventCompleteRegistration = "CompleteRegistration"
	EventContact              = "Contact"
	EventSubscribe            = "Subscribe"
	EventStartTrial           = "StartTrial"
)

const EventTopic = "conversion-events"

// DeliveredEventType identifica el evento de integración que se publica
// tras una entrega exitosa.
const DeliveredEventType = "event.delivered"

func NewEventRegistry() map[string]struct{} {
	names := []string{
		EventPageView,
		EventViewContent,
		EventViewCategory,
		EventSearch,
		EventAddToCart,
		EventAddToWishlist,
		EventInitiateCheckout,
		EventAddPaymentInfo,
		EventPurchase,
		EventLead,
		EventCompleteRegistration,
		EventContact,
		EventSubscribe,
		EventStartTrial,
	}

	registry := make(map[string]struct{}, len(names))
	for _, n := range names {
		registry[n] = struct{}{}
	}
	return registry
}

var knownEvents = NewEventRegistry()

// IsKnownEvent indica si el nombre pertenece al conjunto de eventos conocidos.
func IsKnownEvent(name string) bool {
	_, ok := knownEvents[name]
	return ok
}
