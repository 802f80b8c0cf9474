package logger

import "go.uber.org/zap"

// Campos estándar para que los logs del dominio usen siempre los mismos
// nombres de atributo.

// UserID crea un campo para el ID interno del usuario.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// ProviderField crea un campo para el provider OAuth2.
func ProviderField(v string) zap.Field {
	return zap.String("provider", v)
}

// Operation crea un campo para la operación del orquestador.
func Operation(v string) zap.Field {
	return zap.String("operation", v)
}

// Driver crea un campo para el driver de storage/cache.
func Driver(v string) zap.Field {
	return zap.String("driver", v)
}
