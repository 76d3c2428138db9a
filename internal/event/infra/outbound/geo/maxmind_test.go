package geo

import (
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCityDB responde consultas sin fichero .mmdb y registra cada IP que
// recibe, incluida la forma desenvuelta de un reintento.
type fakeCityDB struct {
	calls  []net.IP
	answer func(ip net.IP) *geoip2.City
}

func (f *fakeCityDB) City(ip net.IP) (*geoip2.City, error) {
	f.calls = append(f.calls, ip)
	return f.answer(ip), nil
}

func populatedCity() *geoip2.City {
	var c geoip2.City
	c.Country.IsoCode = "US"
	c.Country.Names = map[string]string{"en": "United States"}
	c.City.Names = map[string]string{"en": "Mountain View"}
	c.Postal.Code = "94035"
	c.Location.Latitude = 37.386
	c.Location.Longitude = -122.0838
	c.Location.TimeZone = "America/Los_Angeles"
	c.Location.AccuracyRadius = 1000
	return &c
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.4.20", true},
		{"192.168.1.5", true},
		{"169.254.1.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"200.147.3.157", false},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			require.NotNil(t, ip)
			assert.Equal(t, tt.private, IsPrivateIP(ip))
		})
	}
}

func TestIsMappedIPv6(t *testing.T) {
	assert.True(t, isMappedIPv6("::ffff:8.8.8.8"))
	assert.False(t, isMappedIPv6("8.8.8.8"))
	assert.False(t, isMappedIPv6("2001:4860:4860::8888"))
}

// Las IPs privadas o inválidas cortan antes de tocar la base: el resolver
// funciona sin reader para esos casos.
func TestResolve_ShortCircuitsBeforeLookup(t *testing.T) {
	r := &MaxMindResolver{log: zap.NewNop()}

	for _, ip := range []string{"192.168.1.5", "127.0.0.1", "::1", "not-an-ip", "", "   "} {
		record, err := r.Resolve(ip)
		assert.NoError(t, err, "ip %q", ip)
		assert.Nil(t, record, "ip %q", ip)
	}
}

func TestResolve_PopulatesRecordFromDatabase(t *testing.T) {
	db := &fakeCityDB{answer: func(net.IP) *geoip2.City { return populatedCity() }}
	r := &MaxMindResolver{lookup: db, log: zap.NewNop()}

	record, err := r.Resolve("8.8.8.8")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "8.8.8.8", record.IPAddress)
	assert.Equal(t, "US", record.CountryCode)
	assert.Equal(t, "United States", record.CountryName)
	assert.Equal(t, "Mountain View", record.City)
	assert.Equal(t, "94035", record.PostalCode)
	assert.Equal(t, "America/Los_Angeles", record.TimeZone)
	assert.Equal(t, uint16(1000), record.AccuracyRadius)
	assert.Len(t, db.calls, 1)
}

// Una IPv4 en forma IPv6-mapped resuelve igual que la IPv4 desnuda: la base
// falla la primera consulta y el resolver reintenta con la forma de 4 bytes.
func TestResolve_MappedIPv6UnwrapsAndRetries(t *testing.T) {
	db := &fakeCityDB{answer: func(ip net.IP) *geoip2.City {
		if len(ip) == net.IPv4len {
			return populatedCity()
		}
		return &geoip2.City{}
	}}
	r := &MaxMindResolver{lookup: db, log: zap.NewNop()}

	record, err := r.Resolve("::ffff:8.8.8.8")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "US", record.CountryCode)
	// El registro conserva la cadena original del cliente
	assert.Equal(t, "::ffff:8.8.8.8", record.IPAddress)

	require.Len(t, db.calls, 2)
	assert.Len(t, db.calls[1], net.IPv4len)
}

func TestResolve_DatabaseMiss(t *testing.T) {
	db := &fakeCityDB{answer: func(net.IP) *geoip2.City { return &geoip2.City{} }}
	r := &MaxMindResolver{lookup: db, log: zap.NewNop()}

	record, err := r.Resolve("203.0.113.9")
	assert.NoError(t, err)
	assert.Nil(t, record)
	assert.Len(t, db.calls, 1)
}

func TestNoopResolver(t *testing.T) {
	record, err := NoopResolver{}.Resolve("8.8.8.8")
	assert.NoError(t, err)
	assert.Nil(t, record)
}
