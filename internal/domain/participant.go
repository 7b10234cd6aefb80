package domain

import "github.com/google/uuid"

// NewParticipants creates one participant per ticket unit of a paid order.
func NewParticipants(order Order) []Participant {
	var parts []Participant
	for _, item := range order.Items {
		for i := 0; i < item.Quantity; i++ {
			parts = append(parts, Participant{
				ID:           uuid.New(),
				OrderID:      order.ID,
				SessionID:    order.SessionID,
				TicketTypeID: item.TicketTypeID,
				Email:        order.Email,
				State:        NotCheckedIn,
			})
		}
	}
	return parts
}
