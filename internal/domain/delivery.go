package domain

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Stage string

const (
	StageConfirmed      Stage = "confirmed"
	StagePreparing      Stage = "preparing"
	StageOutForDelivery Stage = "out_for_delivery"
	StageDelivered      Stage = "delivered"
)

// Stages lists every fulfillment stage in the only order they may be reached.
var Stages = []Stage{StageConfirmed, StagePreparing, StageOutForDelivery, StageDelivered}

// Index returns the position of s in Stages, or -1 for an unrecognized value.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Next returns the stage following s. ok is false when s is the last stage
// or not a recognized stage at all.
func (s Stage) Next() (next Stage, ok bool) {
	i := s.Index()
	if i < 0 || i == len(Stages)-1 {
		return "", false
	}
	return Stages[i+1], true
}

type DeliveryRequest struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	Address     string    `json:"address"`
	Status      Status    `json:"status"`
	Stage       Stage     `json:"stage"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Total is computed from the unit price captured when the request was
// created, so it does not move with later catalog price changes.
func (r DeliveryRequest) Total() int64 {
	return int64(r.Quantity) * r.UnitPrice
}

// DeliveryFilter narrows a listing. An empty Statuses matches every status.
type DeliveryFilter struct {
	CustomerID string
	Statuses   []Status
}
