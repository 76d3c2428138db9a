package domain

import (
	"time"

	sharedBus "github.com/davicafu/trackrelay/shared/platform/bus"
	"github.com/google/uuid"
)

// ActionSource indica el origen del evento de cara a la API de conversiones.
const (
	ActionSourceWeb = "web"
	ActionSourceApp = "app"
)

// RawEventInput es la entrada cruda del cliente (web/app). No tiene
// invariantes: puede venir incompleta, con claves en snake_case o camelCase,
// y solo vive durante una llamada de ingesta.
type RawEventInput struct {
	EventName                    string            `json:"eventName"`
	UserData                     map[string]any    `json:"userData"`
	CustomData                   map[string]any    `json:"customData"`
	SourceURL                    string            `json:"sourceUrl"`
	DataProcessingOptions        []string          `json:"dataProcessingOptions"`
	DataProcessingOptionsCountry *int              `json:"dataProcessingOptionsCountry"`
	DataProcessingOptionsState   *int              `json:"dataProcessingOptionsState"`
	Segmentation                 map[string]string `json:"customerSegmentation"`
	IsAppEvent                   bool              `json:"isAppEvent"`
}

// CanonicalUserData es el registro de usuario normalizado y seguro para
// salir del proceso: cada campo identificativo es nil o un digest hex.
// IP, user agent y los identificadores derivados de cookies (fbp, fbc,
// login/subscription/lead) viajan sin hashear porque por sí solos no
// identifican a una persona.
type CanonicalUserData struct {
	Email          *string `json:"em,omitempty"`
	Phone          *string `json:"ph,omitempty"`
	FirstName      *string `json:"fn,omitempty"`
	LastName       *string `json:"ln,omitempty"`
	City           *string `json:"ct,omitempty"`
	State          *string `json:"st,omitempty"`
	Zip            *string `json:"zp,omitempty"`
	Country        *string `json:"country,omitempty"`
	Gender         *string `json:"ge,omitempty"`
	BirthDate      *string `json:"db,omitempty"`
	ExternalID     *string `json:"external_id,omitempty"`
	ClientIP       *string `json:"client_ip_address,omitempty"`
	ClientUA       *string `json:"client_user_agent,omitempty"`
	FBP            *string `json:"fbp,omitempty"`
	FBC            *string `json:"fbc,omitempty"`
	LoginID        *string `json:"login_id,omitempty"`
	SubscriptionID *string `json:"subscription_id,omitempty"`
	LeadID         *string `json:"lead_id,omitempty"`
}

// CanonicalCustomData es el payload normalizado del evento.
// ContentIDs siempre es una colección una vez normalizado, nunca un escalar.
type CanonicalCustomData struct {
	Currency        string         `json:"currency"`
	Value           float64        `json:"value"`
	ContentIDs      []string       `json:"content_ids,omitempty"`
	ContentType     *string        `json:"content_type,omitempty"`
	ContentName     *string        `json:"content_name,omitempty"`
	ContentCategory *string        `json:"content_category,omitempty"`
	NumItems        int            `json:"num_items,omitempty"`
	Extra           map[string]any `json:"custom_properties,omitempty"`
}

// GeoRecord es el resultado de una consulta de geolocalización local.
// Nil para IPs privadas/loopback o cuando la base no está disponible.
type GeoRecord struct {
	IPAddress      string  `json:"ip_address"`
	CountryCode    string  `json:"country_code,omitempty"`
	CountryName    string  `json:"country_name,omitempty"`
	RegionCode     string  `json:"region_code,omitempty"`
	RegionName     string  `json:"region_name,omitempty"`
	City           string  `json:"city,omitempty"`
	PostalCode     string  `json:"postal_code,omitempty"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
	TimeZone       string  `json:"time_zone,omitempty"`
	AccuracyRadius uint16  `json:"accuracy_radius,omitempty"`
}

// ServerData es el contexto que rellena el servidor en el ensamblado.
// EventID se genera una única vez y es la clave de deduplicación del
// resto del pipeline.
type ServerData struct {
	EventID                      uuid.UUID         `json:"event_id"`
	EventTime                    int64             `json:"event_time"`
	SourceURL                    string            `json:"event_source_url,omitempty"`
	ActionSource                 string            `json:"action_source"`
	Geo                          *GeoRecord        `json:"geo_data,omitempty"`
	DataProcessingOptions        []string          `json:"data_processing_options,omitempty"`
	DataProcessingOptionsCountry *int              `json:"data_processing_options_country,omitempty"`
	DataProcessingOptionsState   *int              `json:"data_processing_options_state,omitempty"`
	Segmentation                 map[string]string `json:"customer_segmentation,omitempty"`
}

// CanonicalEvent es la unidad que fluye por la cola hasta la entrega.
// Se crea en el ensamblado, se pasa por valor a la cola y nunca se muta
// después.
type CanonicalEvent struct {
	EventName  string              `json:"event_name"`
	UserData   CanonicalUserData   `json:"user_data"`
	CustomData CanonicalCustomData `json:"custom_data"`
	ServerData ServerData          `json:"server_data"`
	CreatedAt  time.Time           `json:"created_at"`
}

func (e *CanonicalEvent) PartitionKey() string {
	return e.ServerData.EventID.String()
}

// IngestResult es lo único que vuelve al cliente tras una ingesta válida.
type IngestResult struct {
	EventID   uuid.UUID `json:"event_id"`
	EventName string    `json:"event_name"`
}

// Verificación estática
var _ sharedBus.Keyer = (*CanonicalEvent)(nil)
