package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_UnknownEventRejected(t *testing.T) {
	raw := RawEventInput{EventName: "NotARealEvent"}

	_, _, err := Normalize(raw)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestNormalize_TotalOverEmptyInput(t *testing.T) {
	raw := RawEventInput{EventName: EventPageView}

	user, custom, err := Normalize(raw)
	require.NoError(t, err)

	assert.Nil(t, user.Email)
	assert.Nil(t, user.ClientIP)
	assert.Equal(t, "BRL", custom.Currency)
	assert.Equal(t, 0.0, custom.Value)
	assert.Nil(t, custom.ContentIDs)
}

func TestNormalize_AcceptsSnakeAndCamelCase(t *testing.T) {
	snake := RawEventInput{
		EventName: EventAddToCart,
		UserData: map[string]any{
			"email":             "A@B.com",
			"client_ip_address": "8.8.8.8",
			"client_user_agent": "Mozilla/5.0",
			"first_name":        " João ",
		},
	}
	camel := RawEventInput{
		EventName: EventAddToCart,
		UserData: map[string]any{
			"email":           "A@B.com",
			"clientIpAddress": "8.8.8.8",
			"clientUserAgent": "Mozilla/5.0",
			"firstName":       " João ",
		},
	}

	userSnake, _, err := Normalize(snake)
	require.NoError(t, err)
	userCamel, _, err := Normalize(camel)
	require.NoError(t, err)

	assert.Equal(t, userSnake, userCamel)
	assert.Equal(t, "a@b.com", *userSnake.Email)
	assert.Equal(t, "8.8.8.8", *userSnake.ClientIP)
	assert.Equal(t, "joão", *userSnake.FirstName)
}

func TestNormalize_CanonicalFieldWins(t *testing.T) {
	raw := RawEventInput{
		EventName: EventLead,
		UserData: map[string]any{
			"em":    "canonical@example.com",
			"email": "friendly@example.com",
		},
	}

	user, _, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "canonical@example.com", *user.Email)
}

func TestNormalize_PassThroughFieldsKeepCase(t *testing.T) {
	raw := RawEventInput{
		EventName: EventPurchase,
		UserData: map[string]any{
			"fbp": "fb.1.1558571054389.1098115397",
			"fbc": "fb.1.1554763741205.AbCdEfGhIj",
			"ua":  "Mozilla/5.0 (X11; Linux x86_64)",
		},
	}

	user, _, err := Normalize(raw)
	require.NoError(t, err)
	// fbp/fbc/UA no son PII por sí solos: viajan sin tocar
	assert.Equal(t, "fb.1.1554763741205.AbCdEfGhIj", *user.FBC)
	assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", *user.ClientUA)
}

func TestNormalize_ContentIDsAlwaysCollection(t *testing.T) {
	scalar := RawEventInput{
		EventName:  EventViewContent,
		CustomData: map[string]any{"content_ids": "123"},
	}
	list := RawEventInput{
		EventName:  EventViewContent,
		CustomData: map[string]any{"contentIds": []any{"123", 456}},
	}

	_, customScalar, err := Normalize(scalar)
	require.NoError(t, err)
	_, customList, err := Normalize(list)
	require.NoError(t, err)

	assert.Equal(t, []string{"123"}, customScalar.ContentIDs)
	assert.Equal(t, []string{"123", "456"}, customList.ContentIDs)
}

func TestNormalize_CustomDataDefaultsAndExtras(t *testing.T) {
	raw := RawEventInput{
		EventName: EventPurchase,
		CustomData: map[string]any{
			"value":     "99.9",
			"currency":  "usd",
			"num_items": 3,
			"promo":     "BLACKFRIDAY",
		},
	}

	_, custom, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, 99.9, custom.Value)
	assert.Equal(t, "USD", custom.Currency)
	assert.Equal(t, 3, custom.NumItems)
	assert.Equal(t, "BLACKFRIDAY", custom.Extra["promo"])
}

func TestNormalize_CategoryDerivedFromURL(t *testing.T) {
	raw := RawEventInput{
		EventName: EventViewCategory,
		SourceURL: "https://shop.example.com/categorias/roupas-femininas?page=2",
	}

	_, custom, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, custom.ContentCategory)
	assert.Equal(t, "Roupas Femininas", *custom.ContentCategory)
}

func TestNormalize_ExplicitCategoryNotOverridden(t *testing.T) {
	raw := RawEventInput{
		EventName:  EventViewCategory,
		SourceURL:  "https://shop.example.com/collections/shoes",
		CustomData: map[string]any{"content_category": "Calçados"},
	}

	_, custom, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "Calçados", *custom.ContentCategory)
}

func TestCategoryFromURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"último segmento no genérico", "https://x.com/shop/eletronicos", "Eletronicos"},
		{"segmento genérico ignorado", "https://x.com/roupas/categories", "Roupas"},
		{"todo genérico", "https://x.com/shop/categories", ""},
		{"separadores a espacios", "https://x.com/c/casa_e-jardim", "Casa E Jardim"},
		{"sin path", "https://x.com/", ""},
		{"vacía", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CategoryFromURL(tc.url))
		})
	}
}

func TestMissingAdvisoryFields(t *testing.T) {
	user := NormalizedUserData{
		Email:    strPtr("a@b.com"),
		ClientIP: strPtr("8.8.8.8"),
	}

	missing := MissingAdvisoryFields(user)
	assert.Contains(t, missing, "ph")
	assert.Contains(t, missing, "fbp")
	assert.NotContains(t, missing, "em")
	assert.NotContains(t, missing, "client_ip")
}
