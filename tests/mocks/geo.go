package mocks

import (
	"github.com/davicafu/trackrelay/internal/event/domain"
)

// FakeGeoResolver devuelve registros precargados por IP; el resto degrada
// a nil igual que el resolver real.
type FakeGeoResolver struct {
	Records map[string]*domain.GeoRecord
}

// Verificación estática
var _ domain.GeoResolver = (*FakeGeoResolver)(nil)

func (r *FakeGeoResolver) Resolve(ip string) (*domain.GeoRecord, error) {
	if r.Records == nil {
		return nil, nil
	}
	return r.Records[ip], nil
}
