package application

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/trackrelay/internal/event/domain"
)

// Assembler compone usuario y payload normalizados en un CanonicalEvent:
// hashea la PII, resuelve geolocalización y sella el contexto de servidor.
// Dos llamadas con la misma entrada producen event_id distintos (cada
// llamada es una ocurrencia distinta) pero user/custom data idénticos.
type Assembler struct {
	geo domain.GeoResolver
	log *zap.Logger
}

func NewAssembler(geo domain.GeoResolver, log *zap.Logger) *Assembler {
	return &Assembler{geo: geo, log: log}
}

func (a *Assembler) Assemble(raw domain.RawEventInput, user domain.NormalizedUserData, custom domain.CanonicalCustomData) *domain.CanonicalEvent {
	geoRecord := a.resolveGeo(user.ClientIP)

	hashed := hashUserData(user)

	// Backfill de campos geo que el cliente no mandó, ya hasheados como
	// el resto de PII.
	if geoRecord != nil {
		if hashed.City == nil && geoRecord.City != "" {
			hashed.City = domain.HashString(geoRecord.City)
		}
		if hashed.State == nil && geoRecord.RegionCode != "" {
			hashed.State = domain.HashString(geoRecord.RegionCode)
		}
		if hashed.Zip == nil && geoRecord.PostalCode != "" {
			hashed.Zip = domain.HashString(geoRecord.PostalCode)
		}
		if hashed.Country == nil && geoRecord.CountryCode != "" {
			hashed.Country = domain.HashString(geoRecord.CountryCode)
		}
	}

	actionSource := domain.ActionSourceWeb
	if raw.IsAppEvent {
		actionSource = domain.ActionSourceApp
	}

	now := time.Now().UTC()

	return &domain.CanonicalEvent{
		EventName:  raw.EventName,
		UserData:   hashed,
		CustomData: custom,
		ServerData: domain.ServerData{
			EventID:                      uuid.New(),
			EventTime:                    now.Unix(),
			SourceURL:                    raw.SourceURL,
			ActionSource:                 actionSource,
			Geo:                          geoRecord,
			DataProcessingOptions:        raw.DataProcessingOptions,
			DataProcessingOptionsCountry: raw.DataProcessingOptionsCountry,
			DataProcessingOptionsState:   raw.DataProcessingOptionsState,
			Segmentation:                 raw.Segmentation,
		},
		CreatedAt: now,
	}
}

// resolveGeo degrada cualquier fallo de enriquecimiento a nil: la ausencia
// de geolocalización nunca es fatal para la ingesta.
func (a *Assembler) resolveGeo(clientIP *string) *domain.GeoRecord {
	if a.geo == nil || clientIP == nil {
		return nil
	}
	record, err := a.geo.Resolve(*clientIP)
	if err != nil {
		a.log.Warn("⚠️ Geo enrichment unavailable", zap.String("ip", *clientIP), zap.Error(err))
		return nil
	}
	return record
}

// hashUserData aplica la clasificación PII: se hashea un campo si y solo si
// identifica a una persona. IP, UA y los ids derivados de cookies pasan tal
// cual. La entrada ya viene normalizada (trim + lowercase) del normalizador.
func hashUserData(user domain.NormalizedUserData) domain.CanonicalUserData {
	return domain.CanonicalUserData{
		Email:          domain.HashField(user.Email),
		Phone:          domain.HashPhone(user.Phone),
		FirstName:      domain.HashField(user.FirstName),
		LastName:       domain.HashField(user.LastName),
		City:           domain.HashField(user.City),
		State:          domain.HashField(user.State),
		Zip:            domain.HashField(user.Zip),
		Country:        domain.HashField(user.Country),
		Gender:         domain.HashField(user.Gender),
		BirthDate:      domain.HashField(user.BirthDate),
		ExternalID:     domain.HashField(user.ExternalID),
		ClientIP:       user.ClientIP,
		ClientUA:       user.ClientUA,
		FBP:            user.FBP,
		FBC:            user.FBC,
		LoginID:        user.LoginID,
		SubscriptionID: user.SubscriptionID,
		LeadID:         user.LeadID,
	}
}
