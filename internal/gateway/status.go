package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"qrshop/internal/domain"
)

// Status is the provider's view of one transaction. Code follows the
// provider's numbering; domain.GatewayPaidCode means settled.
type Status struct {
	Message string
	Code    int
	Known   bool
}

func (s Status) Paid() bool { return s.Known && s.Code == domain.GatewayPaidCode }

func Unknown() Status { return Status{Message: UnknownStatusMessage} }

// flexInt accepts 2, "2" and null.
type flexInt struct {
	N     int
	Valid bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	f.N, f.Valid = n, true
	return nil
}

type statusRequest struct {
	Transaction string `json:"TransaccionDePago"`
}

type statusValues struct {
	Message string  `json:"messageEstado"`
	Code    flexInt `json:"EstadoTransaccion"`
}

// QueryStatus asks the provider for the state of a transaction. On failure it
// still returns an "unknown" Status next to the error so pollers keep going.
func (c *Client) QueryStatus(ctx context.Context, transactionID string) (Status, error) {
	if transactionID == "" {
		return Unknown(), &domain.GatewayError{Op: OpStatus, Err: errors.New("missing transaction id")}
	}
	env, err := c.post(ctx, OpStatus, "/consultartransaccion", "", statusRequest{Transaction: transactionID})
	if err != nil {
		return Unknown(), err
	}
	var v statusValues
	if len(env.Values) == 0 || json.Unmarshal(env.Values, &v) != nil {
		return Unknown(), &domain.GatewayError{Op: OpStatus, Err: errors.New("values is not a status object")}
	}
	st := Status{Message: v.Message, Code: v.Code.N, Known: v.Code.Valid}
	if st.Message == "" {
		st.Message = UnknownStatusMessage
	}
	return st, nil
}
