package auth

import (
	"errors"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/asifanwar1/taskothon/domain"
)

var (
	errInvalidClaims = errors.New("invalid claims")
	errMissingSub    = errors.New("missing sub")
)

// Validator turns a session token into an Identity.
type Validator struct {
	jwks       *keyfunc.JWKS
	audience   string
	issuer     string
	testMode   bool
	testSecret []byte

	parser *jwt.Parser
}

// NewValidator creates a JWKS-backed RS256 validator.
func NewValidator(jwks *keyfunc.JWKS, audience, issuer string) *Validator {
	return &Validator{
		jwks:     jwks,
		audience: audience,
		issuer:   issuer,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
	}
}

// NewTestValidator creates an HS256 validator for local and test use.
func NewTestValidator(secret []byte) *Validator {
	return &Validator{
		testMode:   true,
		testSecret: secret,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// IdentityFromToken validates the token and extracts the principal.
func (v *Validator) IdentityFromToken(token string) (*domain.Identity, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	var parsed *jwt.Token
	var err error
	if v.testMode {
		parsed, err = v.parser.Parse(token, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return v.testSecret, nil
		})
	} else {
		parsed, err = v.parser.Parse(token, func(t *jwt.Token) (any, error) {
			if v.jwks == nil {
				return nil, errors.New("jwks not configured")
			}
			return v.jwks.Keyfunc(t)
		})
	}
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidClaims
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, false) {
		return nil, errors.New("invalid audience")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, false) {
		return nil, errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errMissingSub
	}

	id := &domain.Identity{ID: sub}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if id.Name == "" && id.Email != "" {
		id.Name = localPart(id.Email)
	}
	return id, nil
}

func localPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
