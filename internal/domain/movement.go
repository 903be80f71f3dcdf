package domain

type MovementKind string

const (
	MovementIn  MovementKind = "ingreso"
	MovementOut MovementKind = "salida"
)

func (k MovementKind) Valid() bool { return k == MovementIn || k == MovementOut }

// Delta is the signed stock change a movement of qty units causes.
func (k MovementKind) Delta(qty int) int {
	if k == MovementOut {
		return -qty
	}
	return qty
}

type Movement struct {
	ID          int64        `db:"id" json:"id"`
	ProductID   int64        `db:"product_id" json:"product_id"`
	ProductName string       `db:"product_name" json:"product_name,omitempty"`
	Kind        MovementKind `db:"kind" json:"kind"`
	Quantity    int          `db:"quantity" json:"quantity"`
	Note        string       `db:"note" json:"note,omitempty"`
	CreatedAt   string       `db:"created_at" json:"created_at"`
	UpdatedAt   string       `db:"updated_at" json:"updated_at"`
}
