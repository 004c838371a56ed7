package scanner

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// Status is the classification of a single probe.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
	StatusError  Status = "Error"
)

// Well-known causes attached to Error outcomes.
const (
	CauseTimeout  = "timeout"
	CauseCanceled = "canceled"
)

// Outcome is the result of probing one port. Banner is only meaningful for
// Open outcomes and Cause only for Error outcomes.
type Outcome struct {
	Port   int
	Status Status
	Banner []byte
	Cause  string
}

// outcomeJSON carries a UTF-8 banner as text and anything else as base64
// under banner_b64, so binary greetings survive a round trip.
type outcomeJSON struct {
	Port      int    `json:"port"`
	Status    Status `json:"status"`
	Banner    string `json:"banner,omitempty"`
	BannerB64 []byte `json:"banner_b64,omitempty"`
	Cause     string `json:"cause,omitempty"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	raw := outcomeJSON{
		Port:   o.Port,
		Status: o.Status,
		Cause:  o.Cause,
	}
	if utf8.Valid(o.Banner) {
		raw.Banner = string(o.Banner)
	} else {
		raw.BannerB64 = o.Banner
	}
	return json.Marshal(raw)
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	banner := []byte(raw.Banner)
	if len(raw.BannerB64) > 0 {
		banner = raw.BannerB64
	}
	*o = Outcome{
		Port:   raw.Port,
		Status: raw.Status,
		Banner: banner,
		Cause:  raw.Cause,
	}
	return nil
}

// Result holds one Outcome per requested port, in the order the ports were
// submitted. It is complete and read-only once Engine.Run returns.
type Result struct {
	Host     string        `json:"host"`
	Outcomes []Outcome     `json:"outcomes"`
	Started  time.Time     `json:"started"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Counts tallies outcomes by status.
type Counts struct {
	Open   int `json:"open"`
	Closed int `json:"closed"`
	Error  int `json:"error"`
}

// Lookup returns the outcome recorded for port.
func (r Result) Lookup(port int) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Port == port {
			return o, true
		}
	}
	return Outcome{}, false
}

// Counts returns how many ports ended in each status.
func (r Result) Counts() Counts {
	var c Counts
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusOpen:
			c.Open++
		case StatusClosed:
			c.Closed++
		default:
			c.Error++
		}
	}
	return c
}
