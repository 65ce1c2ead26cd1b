package platform

import (
	"fmt"
	"strings"
)

// RegistryPath is a registry key split into its hive and subkey.
type RegistryPath struct {
	Hive   string
	Subkey string
}

var hiveAliases = map[string]string{
	"HKEY_LOCAL_MACHINE":  "HKEY_LOCAL_MACHINE",
	"HKLM":                "HKEY_LOCAL_MACHINE",
	"HKEY_CURRENT_USER":   "HKEY_CURRENT_USER",
	"HKCU":                "HKEY_CURRENT_USER",
	"HKEY_CLASSES_ROOT":   "HKEY_CLASSES_ROOT",
	"HKCR":                "HKEY_CLASSES_ROOT",
	"HKEY_USERS":          "HKEY_USERS",
	"HKU":                 "HKEY_USERS",
	"HKEY_CURRENT_CONFIG": "HKEY_CURRENT_CONFIG",
	"HKCC":                "HKEY_CURRENT_CONFIG",
}

// ParseRegistryPath accepts HKEY_LOCAL_MACHINE\Sub\Key, the HKLM\ short
// form, the HKLM:\ drive form and a leading Registry:: provider prefix.
func ParseRegistryPath(path string) (RegistryPath, error) {
	p := strings.TrimSpace(path)
	if len(p) >= len("Registry::") && strings.EqualFold(p[:len("Registry::")], "Registry::") {
		p = p[len("Registry::"):]
	}
	p = strings.ReplaceAll(p, "/", `\`)

	head, rest, _ := strings.Cut(p, `\`)
	head = strings.TrimSuffix(head, ":")
	hive, ok := hiveAliases[strings.ToUpper(head)]
	if !ok {
		return RegistryPath{}, fmt.Errorf("unknown registry hive in %q", path)
	}
	return RegistryPath{Hive: hive, Subkey: strings.Trim(rest, `\`)}, nil
}

// LooksLikeRegistryPath reports whether s starts with a registry hive name.
func LooksLikeRegistryPath(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	return strings.HasPrefix(upper, "HKEY_") || strings.HasPrefix(upper, "REGISTRY::") ||
		strings.HasPrefix(upper, `HKLM:\`) || strings.HasPrefix(upper, `HKCU:\`)
}
