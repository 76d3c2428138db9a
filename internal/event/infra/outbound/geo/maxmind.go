package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/davicafu/trackrelay/internal/event/domain"
)

// cityLookup es la consulta mínima que necesita el resolver. *geoip2.Reader
// la satisface; los tests la sustituyen por una base sembrada.
type cityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

var _ cityLookup = (*geoip2.Reader)(nil)

// MaxMindResolver implementa GeoResolver sobre una base GeoLite2 local
// (.mmdb): lectura síncrona, sin red. La descarga/refresco del fichero es
// responsabilidad del despliegue, no de este adapter.
type MaxMindResolver struct {
	lookup cityLookup
	reader *geoip2.Reader
	log    *zap.Logger
}

// Verificación estática
var _ domain.GeoResolver = (*MaxMindResolver)(nil)

func NewMaxMindResolver(dbPath string, log *zap.Logger) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open geo database: %w", err)
	}
	return &MaxMindResolver{lookup: reader, reader: reader, log: log}, nil
}

func (r *MaxMindResolver) Close() error {
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

// Resolve degrada todo fallo a (nil, nil): una IP privada, inválida o sin
// entrada en la base produce simplemente un evento sin geolocalización.
func (r *MaxMindResolver) Resolve(ipStr string) (*domain.GeoRecord, error) {
	original := strings.TrimSpace(ipStr)
	ip := net.ParseIP(original)
	if ip == nil {
		return nil, nil
	}
	if IsPrivateIP(ip) {
		return nil, nil
	}

	city, err := r.lookup.City(ip)

	// Una IPv4 embebida en forma IPv6-mapped se desenvuelve y se
	// reintenta una vez antes de rendirse. El registro conserva la
	// cadena original del cliente.
	if (err != nil || city == nil || city.Country.IsoCode == "") && isMappedIPv6(original) {
		if v4 := ip.To4(); v4 != nil {
			city, err = r.lookup.City(v4)
		}
	}
	if err != nil {
		r.log.Debug("Geo lookup failed", zap.String("ip", original), zap.Error(err))
		return nil, nil
	}
	if city == nil || city.Country.IsoCode == "" {
		return nil, nil // miss
	}

	record := &domain.GeoRecord{
		IPAddress:      original,
		CountryCode:    city.Country.IsoCode,
		CountryName:    city.Country.Names["en"],
		City:           city.City.Names["en"],
		PostalCode:     city.Postal.Code,
		Latitude:       city.Location.Latitude,
		Longitude:      city.Location.Longitude,
		TimeZone:       city.Location.TimeZone,
		AccuracyRadius: city.Location.AccuracyRadius,
	}
	if len(city.Subdivisions) > 0 {
		record.RegionCode = city.Subdivisions[0].IsoCode
		record.RegionName = city.Subdivisions[0].Names["en"]
	}
	return record, nil
}

// IsPrivateIP corta antes de consultar la base: loopback, rangos privados,
// link-local y direcciones no especificadas nunca tienen geolocalización.
func IsPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// isMappedIPv6 detecta la forma "::ffff:a.b.c.d". net.ParseIP normaliza la
// representación interna, así que se mira la cadena original.
func isMappedIPv6(ipStr string) bool {
	return strings.Contains(ipStr, ":") && strings.Count(ipStr, ".") == 3
}

// NoopResolver se usa cuando no hay base de geolocalización cargada:
// enriquecimiento no disponible, nunca fatal.
type NoopResolver struct{}

var _ domain.GeoResolver = (*NoopResolver)(nil)

func (NoopResolver) Resolve(string) (*domain.GeoRecord, error) {
	return nil, nil
}
