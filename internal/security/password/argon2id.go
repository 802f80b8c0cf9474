// Package password implementa el "Credential Verifier": hash y verificación
// de secretos locales. El resto del sistema sólo ve PHC strings opacos.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher abstrae el hash/verify de passwords para poder inyectar
// implementaciones alternativas (tests, KDFs futuros).
type Hasher interface {
	// Hash devuelve un PHC string para el password en claro.
	Hash(plain string) (string, error)
	// Verify compara un password en claro contra un PHC string almacenado.
	Verify(plain, phc string) bool
}

// Params son los parámetros de argon2id.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultParams balancea costo y latencia para logins interactivos.
var DefaultParams = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, SaltLen: 16, KeyLen: 32}

// Argon2id implementa Hasher con argon2id en formato PHC:
// $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
type Argon2id struct {
	Params Params
}

// NewArgon2id crea un Hasher argon2id. Con zero Params usa DefaultParams.
func NewArgon2id(p Params) *Argon2id {
	if p.Memory == 0 {
		p = DefaultParams
	}
	return &Argon2id{Params: p}
}

func (a *Argon2id) Hash(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("password: empty password")
	}
	p := a.Params
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify re-deriva la key con los parámetros embebidos en el PHC string,
// no con los del Hasher: un cambio de tuning no invalida hashes viejos.
func (a *Argon2id) Verify(plain, phc string) bool {
	parts := strings.Split(phc, "$")
	// ["", "argon2id", "v=19", "m=..,t=..,p=..", salt, dk]
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var v int
	if n, _ := fmt.Sscanf(parts[2], "v=%d", &v); n != 1 || v != 19 {
		return false
	}
	var m, t, p int
	if n, _ := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); n != 3 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	dkStored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(dkStored) == 0 {
		return false
	}
	key := argon2.IDKey([]byte(plain), salt, uint32(t), uint32(m), uint8(p), uint32(len(dkStored)))
	return subtle.ConstantTimeCompare(key, dkStored) == 1
}
