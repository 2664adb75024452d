package dist

import (
	"fmt"
	"strings"

	"incuba/domain/core"
)

// Family identifies one of the supported incubation-period families
type Family string

const (
	LogNormal Family = "log-normal" // parameterized by meanlog, sdlog
	Gamma     Family = "gamma"      // parameterized by shape, scale
	Weibull   Family = "weibull"    // parameterized by shape, scale
	Erlang    Family = "erlang"     // gamma with integer shape
)

// Families returns every supported family in canonical order
func Families() []Family {
	return []Family{LogNormal, Gamma, Weibull, Erlang}
}

// ParseFamily maps a user-facing family name to a Family
func ParseFamily(name string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "log-normal", "lognormal", "log_normal":
		return LogNormal, nil
	case "gamma":
		return Gamma, nil
	case "weibull":
		return Weibull, nil
	case "erlang":
		return Erlang, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownFamily, name)
}

// ParamNames returns the user-facing parameter names in P1, P2 order
func (f Family) ParamNames() [2]string {
	if f == LogNormal {
		return [2]string{"meanlog", "sdlog"}
	}
	return [2]string{"shape", "scale"}
}

// String returns the canonical family name
func (f Family) String() string {
	return string(f)
}
