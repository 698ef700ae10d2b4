package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// GenerateJWT issues a bearer token bound to a wallet address. The mobile
// client obtains one after proving wallet ownership and sends it on mutating
// bet routes.
func GenerateJWT(wallet string, jwtSecret string) (string, error) {
	claims := jwt.MapClaims{
		"wallet": wallet,
		"exp":    time.Now().Add(time.Hour * 24).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// ValidateJWT returns the wallet address the token was issued for.
func ValidateJWT(tokenStr string, jwtSecret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	if err := claims.Valid(); err != nil {
		return "", err
	}

	wallet, ok := claims["wallet"].(string)
	if !ok || wallet == "" {
		return "", fmt.Errorf("wallet claim missing")
	}

	return wallet, nil
}
