package orchestra

import (
	"fmt"
	"net/url"
)

// DriverConfig is the parsed form of a driver DSN such as "docker://discovery"
// or "k8s://my-namespace?timeout=30". Namespace is the host/opaque segment,
// the value every InitFunc expects as its first argument.
type DriverConfig struct {
	Scheme    string
	Namespace string
	Params    map[string]string
}

const defaultNamespace = "discovery"

// ParseDriverDSN parses a driver DSN into its scheme, namespace, and query
// parameters. Accepts both "scheme://namespace?..." and bare "scheme" forms.
func ParseDriverDSN(dsn string) (DriverConfig, error) {
	if dsn == "" {
		return DriverConfig{}, fmt.Errorf("empty driver DSN")
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return DriverConfig{}, fmt.Errorf("could not parse driver DSN %q: %w", dsn, err)
	}

	if parsed.Scheme == "" {
		return DriverConfig{Scheme: dsn, Namespace: defaultNamespace, Params: map[string]string{}}, nil
	}

	namespace := parsed.Host
	if namespace == "" {
		namespace = parsed.Opaque
	}

	if namespace == "" {
		namespace = defaultNamespace
	}

	params := map[string]string{}
	for key, values := range parsed.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	return DriverConfig{Scheme: parsed.Scheme, Namespace: namespace, Params: params}, nil
}

// GetFromDSN looks up the InitFunc registered for dsn's scheme, mirroring
// storage.GetFromDSN. Unlike storage's InitFunc (which re-parses the raw
// DSN itself), an orchestra InitFunc takes a bare namespace, so callers
// should invoke it with the DriverConfig's Namespace rather than the DSN.
func GetFromDSN(dsn string) (InitFunc, bool) {
	config, err := ParseDriverDSN(dsn)
	if err != nil {
		return nil, false
	}

	init, ok := drivers[config.Scheme]

	return init, ok
}
