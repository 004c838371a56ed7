package scanner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	minPort = 1
	maxPort = 65535
)

// ErrInvalidPortSpec is returned when a port expression cannot be resolved.
var ErrInvalidPortSpec = errors.New("invalid port spec")

// PortSpec is the resolved, ordered list of ports to scan.
type PortSpec []int

// ResolvePorts turns a port expression into a PortSpec.
//
// An expression containing "-" is a single inclusive range "start-end" and
// resolves in ascending order. Anything else is a comma separated list whose
// input order is kept; repeated ports collapse onto their first occurrence.
// Ranges and lists cannot be mixed in one expression.
func ResolvePorts(expr string) (PortSpec, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidPortSpec)
	}

	if strings.Contains(expr, "-") {
		return resolveRange(expr)
	}
	return resolveList(expr)
}

func resolveRange(expr string) (PortSpec, error) {
	parts := strings.Split(expr, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: range must be start-end: %q", ErrInvalidPortSpec, expr)
	}

	start, err := parsePort(parts[0])
	if err != nil {
		return nil, err
	}
	end, err := parsePort(parts[1])
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, fmt.Errorf("%w: range start %d greater than end %d", ErrInvalidPortSpec, start, end)
	}

	ports := make(PortSpec, 0, end-start+1)
	for p := start; p <= end; p++ {
		ports = append(ports, p)
	}
	return ports, nil
}

func resolveList(expr string) (PortSpec, error) {
	tokens := strings.Split(expr, ",")
	seen := make(map[int]struct{}, len(tokens))
	ports := make(PortSpec, 0, len(tokens))
	for _, tok := range tokens {
		p, err := parsePort(tok)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		ports = append(ports, p)
	}
	return ports, nil
}

// parsePort accepts unsigned decimal tokens only.
func parsePort(tok string) (int, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.Trim(tok, "0123456789") != "" {
		return 0, fmt.Errorf("%w: port is not a number: %q", ErrInvalidPortSpec, tok)
	}
	p, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: port is not a number: %q", ErrInvalidPortSpec, tok)
	}
	if p < minPort || p > maxPort {
		return 0, fmt.Errorf("%w: port %d outside %d-%d", ErrInvalidPortSpec, p, minPort, maxPort)
	}
	return p, nil
}
