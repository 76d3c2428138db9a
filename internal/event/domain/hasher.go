package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// HashField devuelve el digest SHA-256 (hex en minúsculas) del valor
// normalizado: trim + lowercase. La normalización previa al hash es parte
// del contrato con la API de destino; cambiar el orden rompe el matching.
// Entrada vacía o nil produce nil, nunca se hashea la cadena vacía.
func HashField(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*value))
	if normalized == "" {
		return nil
	}
	return digest(normalized)
}

// HashPhone normaliza un teléfono eliminando todo lo que no sea dígito
// antes de hashear. "+55 (11) 91234-5678" y "5511912345678" producen el
// mismo digest.
func HashPhone(value *string) *string {
	if value == nil {
		return nil
	}
	var b strings.Builder
	for _, r := range *value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	return digest(b.String())
}

// HashString es la variante de HashField para cadenas ya materializadas.
func HashString(value string) *string {
	return HashField(&value)
}

func digest(normalized string) *string {
	sum := sha256.Sum256([]byte(normalized))
	out := hex.EncodeToString(sum[:])
	return &out
}
