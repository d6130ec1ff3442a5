package crypto

const (
	HashSize     = 32
	IdentitySize = 32
)
