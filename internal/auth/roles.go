package auth

// Role represents a caller role.
type Role string

const (
	// RoleViewer may read registry contents and balances.
	RoleViewer Role = "viewer"
	// RoleMeter is a metering endpoint; it may submit energy flows for itself.
	RoleMeter Role = "meter"
	// RoleHive is an aggregation operator; it may withdraw from assigned meters.
	RoleHive Role = "hive"
	// RoleTariffOwner may update tariff prices but not add or remove tariffs.
	RoleTariffOwner Role = "tariffowner"
	// RoleAdmin is the registry administrator.
	RoleAdmin Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleViewer, RoleMeter, RoleHive, RoleTariffOwner, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// CanRead reports whether the role may use read-only operations.
func CanRead(role Role) bool {
	_, ok := NormalizeRole(string(role))
	return ok
}
