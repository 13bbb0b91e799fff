package config

type SecurityConfig interface {
	GetRequirePKCE() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetRequirePKCE forces PKCE for confidential clients too. Public clients always need it.
func (Security) GetRequirePKCE() bool {
	return GetEnvBool("REQUIRE_PKCE", false)
}
