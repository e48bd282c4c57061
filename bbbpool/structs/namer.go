package structs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NumberPlaceholder is replaced by the slot number in name templates.
const NumberPlaceholder = "X"

// SlotNamer derives the names of a slot from its number and back.
type SlotNamer struct {
	domainTemplate   string
	hostnameTemplate string
	fqdnSuffix       string

	domainRE   *regexp.Regexp
	hostnameRE *regexp.Regexp
}

// NewSlotNamer compiles the domain and hostname templates. Each template must
// contain exactly one placeholder. The FQDN of a slot is its hostname
// followed by subdomain and zone when they are set.
func NewSlotNamer(domainTemplate, hostnameTemplate, subdomain, zone string) (*SlotNamer, error) {
	domainRE, err := templateRegexp(domainTemplate)
	if err != nil {
		return nil, fmt.Errorf("domain template: %v", err)
	}
	hostnameRE, err := templateRegexp(hostnameTemplate)
	if err != nil {
		return nil, fmt.Errorf("hostname template: %v", err)
	}

	var suffix string
	for _, part := range []string{subdomain, zone} {
		if part != "" {
			suffix += "." + part
		}
	}

	return &SlotNamer{
		domainTemplate:   domainTemplate,
		hostnameTemplate: hostnameTemplate,
		fqdnSuffix:       suffix,
		domainRE:         domainRE,
		hostnameRE:       hostnameRE,
	}, nil
}

func templateRegexp(template string) (*regexp.Regexp, error) {
	if strings.Count(template, NumberPlaceholder) != 1 {
		return nil, fmt.Errorf("%q must contain exactly one %q placeholder", template, NumberPlaceholder)
	}
	parts := strings.SplitN(template, NumberPlaceholder, 2)
	return regexp.Compile("^" + regexp.QuoteMeta(parts[0]) + `(\d+)` + regexp.QuoteMeta(parts[1]) + "$")
}

// Domain returns the load balancer domain of slot n.
func (n *SlotNamer) Domain(number int) string {
	return strings.Replace(n.domainTemplate, NumberPlaceholder, strconv.Itoa(number), 1)
}

// Hostname returns the hoster machine name of slot n.
func (n *SlotNamer) Hostname(number int) string {
	return strings.Replace(n.hostnameTemplate, NumberPlaceholder, strconv.Itoa(number), 1)
}

// FQDN returns the name used to reach slot n over SSH.
func (n *SlotNamer) FQDN(number int) string {
	return n.Hostname(number) + n.fqdnSuffix
}

// HostnamePattern is the hostname template with its placeholder removed, used
// to search hoster machines by name prefix.
func (n *SlotNamer) HostnamePattern() string {
	return strings.Replace(n.hostnameTemplate, NumberPlaceholder, "", 1)
}

// NumberFromDomain returns the slot number of a domain, or false when the
// domain does not belong to the pool.
func (n *SlotNamer) NumberFromDomain(domain string) (int, bool) {
	return match(n.domainRE, domain)
}

// NumberFromHostname returns the slot number of a hoster machine name.
func (n *SlotNamer) NumberFromHostname(hostname string) (int, bool) {
	return match(n.hostnameRE, hostname)
}

func match(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	number, err := strconv.Atoi(m[1])
	if err != nil || number < 1 {
		return 0, false
	}
	// Leading zeros would not map back to the same name.
	if strconv.Itoa(number) != m[1] {
		return 0, false
	}
	return number, true
}
