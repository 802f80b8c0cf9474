package password

import (
	"fmt"
	"unicode"
)

// Policy define requisitos mínimos para passwords nuevos.
// Zero value = sin requisitos.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// Validate retorna un error descriptivo si el password no cumple la policy.
func (p Policy) Validate(plain string) error {
	if p.MinLength > 0 && len(plain) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters", p.MinLength)
	}
	var upper, lower, digit, symbol bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if p.RequireUpper && !upper {
		return fmt.Errorf("password must contain an uppercase letter")
	}
	if p.RequireLower && !lower {
		return fmt.Errorf("password must contain a lowercase letter")
	}
	if p.RequireDigit && !digit {
		return fmt.Errorf("password must contain a digit")
	}
	if p.RequireSymbol && !symbol {
		return fmt.Errorf("password must contain a symbol")
	}
	return nil
}
