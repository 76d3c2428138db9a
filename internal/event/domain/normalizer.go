package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// NormalizedUserData es el paso intermedio entre la entrada cruda y
// CanonicalUserData: campos ya normalizados (trim + lowercase) pero todavía
// en claro. El ensamblador es quien decide qué campos se hashean y en qué
// orden, nunca este paso.
type NormalizedUserData struct {
	Email          *string
	Phone          *string
	FirstName      *string
	LastName       *string
	City           *string
	State          *string
	Zip            *string
	Country        *string
	Gender         *string
	BirthDate      *string
	ExternalID     *string
	ClientIP       *string
	ClientUA       *string
	FBP            *string
	FBC            *string
	LoginID        *string
	SubscriptionID *string
	LeadID         *string
}

// Alias aceptados por campo. El primer alias es siempre el nombre canónico:
// si el cliente manda ambos ("em" y "email"), gana el canónico.
var userFieldAliases = map[string][]string{
	"em":              {"em", "email"},
	"ph":              {"ph", "phone", "phonenumber"},
	"fn":              {"fn", "firstname"},
	"ln":              {"ln", "lastname"},
	"ct":              {"ct", "city"},
	"st":              {"st", "state", "region"},
	"zp":              {"zp", "zip", "zipcode", "postalcode"},
	"country":         {"country", "countrycode"},
	"ge":              {"ge", "gender"},
	"db":              {"db", "dob", "birthdate", "dateofbirth"},
	"external_id":     {"externalid", "userid"},
	"client_ip":       {"clientipaddress", "ip", "ipaddress"},
	"client_ua":       {"clientuseragent", "useragent", "ua"},
	"fbp":             {"fbp"},
	"fbc":             {"fbc"},
	"login_id":        {"loginid"},
	"subscription_id": {"subscriptionid"},
	"lead_id":         {"leadid"},
}

var customFieldAliases = map[string][]string{
	"currency":         {"currency"},
	"value":            {"value", "totalvalue", "price"},
	"content_ids":      {"contentids", "contentid", "productids", "productid"},
	"content_type":     {"contenttype"},
	"content_name":     {"contentname"},
	"content_category": {"contentcategory", "category"},
	"num_items":        {"numitems", "quantity"},
}

// Segmentos de URL genéricos que nunca sirven como etiqueta de categoría.
var genericPathSegments = map[string]struct{}{
	"category":    {},
	"categories":  {},
	"collection":  {},
	"collections": {},
	"c":           {},
	"shop":        {},
	"catalog":     {},
	"products":    {},
	"product":     {},
	"pages":       {},
	"p":           {},
}

// Normalize mapea la entrada cruda al esquema canónico. Es total sobre
// cualquier forma de entrada: campos ausentes quedan en nil/default. El
// único rechazo posible es un nombre de evento desconocido (ErrInvalidEvent).
func Normalize(raw RawEventInput) (NormalizedUserData, CanonicalCustomData, error) {
	var user NormalizedUserData
	var custom CanonicalCustomData

	if !IsKnownEvent(raw.EventName) {
		return user, custom, fmt.Errorf("%w: unknown event name %q", ErrInvalidEvent, raw.EventName)
	}

	folded := foldKeys(raw.UserData)

	user.Email = lowerField(folded, "em")
	user.Phone = rawField(folded, "ph")
	user.FirstName = lowerField(folded, "fn")
	user.LastName = lowerField(folded, "ln")
	user.City = lowerField(folded, "ct")
	user.State = lowerField(folded, "st")
	user.Zip = lowerField(folded, "zp")
	user.Country = lowerField(folded, "country")
	user.Gender = lowerField(folded, "ge")
	user.BirthDate = lowerField(folded, "db")
	user.ExternalID = rawField(folded, "external_id")
	user.ClientIP = rawField(folded, "client_ip")
	user.ClientUA = rawField(folded, "client_ua")
	user.FBP = rawField(folded, "fbp")
	user.FBC = rawField(folded, "fbc")
	user.LoginID = rawField(folded, "login_id")
	user.SubscriptionID = rawField(folded, "subscription_id")
	user.LeadID = rawField(folded, "lead_id")

	custom = normalizeCustom(raw)

	return user, custom, nil
}

func normalizeCustom(raw RawEventInput) CanonicalCustomData {
	custom := CanonicalCustomData{
		Currency: "BRL",
		Value:    0,
	}

	folded := foldKeys(raw.CustomData)

	if v := rawField(folded, "currency"); v != nil {
		custom.Currency = strings.ToUpper(*v)
	}
	if v, ok := lookupAlias(folded, customFieldAliases["value"]); ok {
		custom.Value = toFloat(v)
	}
	if v, ok := lookupAlias(folded, customFieldAliases["content_ids"]); ok {
		custom.ContentIDs = toStringSlice(v)
	}
	custom.ContentType = rawField(folded, "content_type")
	custom.ContentName = rawField(folded, "content_name")
	custom.ContentCategory = rawField(folded, "content_category")
	if v, ok := lookupAlias(folded, customFieldAliases["num_items"]); ok {
		custom.NumItems = int(toFloat(v))
	}

	// El resto de claves viaja como extensión libre.
	consumed := make(map[string]struct{})
	for _, aliases := range customFieldAliases {
		for _, a := range aliases {
			consumed[a] = struct{}{}
		}
	}
	for k, v := range folded {
		if _, ok := consumed[k]; ok {
			continue
		}
		if custom.Extra == nil {
			custom.Extra = make(map[string]any)
		}
		custom.Extra[k] = v
	}

	// Vista de categoría sin categoría explícita: derivarla de la URL.
	if raw.EventName == EventViewCategory && custom.ContentCategory == nil {
		if label := CategoryFromURL(raw.SourceURL); label != "" {
			custom.ContentCategory = &label
		}
	}

	return custom
}

// CategoryFromURL deriva una etiqueta legible del último segmento no
// genérico del path: "/shop/roupas-femininas?page=2" → "Roupas Femininas".
func CategoryFromURL(sourceURL string) string {
	if sourceURL == "" {
		return ""
	}
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := strings.ToLower(strings.TrimSpace(segments[i]))
		if seg == "" {
			continue
		}
		if _, generic := genericPathSegments[seg]; generic {
			continue
		}
		return titleCase(strings.NewReplacer("-", " ", "_", " ").Replace(seg))
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

// AdvisoryUserFields son las claves de user data que esperamos recibir.
// Su ausencia solo genera telemetría, nunca bloquea el procesado.
var AdvisoryUserFields = []string{"em", "ph", "external_id", "client_ip", "client_ua", "fbp", "fbc"}

// MissingAdvisoryFields devuelve las claves esperadas que quedaron vacías.
func MissingAdvisoryFields(user NormalizedUserData) []string {
	present := map[string]*string{
		"em":          user.Email,
		"ph":          user.Phone,
		"external_id": user.ExternalID,
		"client_ip":   user.ClientIP,
		"client_ua":   user.ClientUA,
		"fbp":         user.FBP,
		"fbc":         user.FBC,
	}
	var missing []string
	for _, k := range AdvisoryUserFields {
		if present[k] == nil {
			missing = append(missing, k)
		}
	}
	return missing
}

// ---------- Helpers de claves tolerantes a convención ----------

// foldKeys vuelca el mapa crudo con claves plegadas: minúsculas y sin
// separadores, de forma que "client_ip_address", "clientIpAddress" y
// "ClientIPAddress" colisionan en la misma clave.
func foldKeys(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		fk := foldKey(k)
		if _, exists := out[fk]; exists {
			continue // la primera aparición gana; los alias resuelven prioridad
		}
		out[fk] = v
	}
	return out
}

func foldKey(k string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(k))
}

func lookupAlias(folded map[string]any, aliases []string) (any, bool) {
	for _, a := range aliases {
		if v, ok := folded[a]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// rawField extrae el valor como string con trim, sin forzar minúsculas.
func rawField(folded map[string]any, field string) *string {
	aliases, ok := userFieldAliases[field]
	if !ok {
		aliases = customFieldAliases[field]
	}
	v, found := lookupAlias(folded, aliases)
	if !found {
		return nil
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return nil
	}
	return &s
}

// lowerField extrae el valor ya normalizado a minúsculas.
func lowerField(folded map[string]any, field string) *string {
	v := rawField(folded, field)
	if v == nil {
		return nil
	}
	lowered := strings.ToLower(*v)
	return &lowered
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// toStringSlice garantiza que content_ids sea siempre una colección,
// aunque el cliente mande un escalar suelto.
func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(toString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := strings.TrimSpace(toString(v)); s != "" {
			return []string{s}
		}
		return nil
	}
}
