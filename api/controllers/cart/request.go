package cart

import (
	"github.com/google/uuid"

	"github.com/electronicjova/storefront-backend/api/validators"
	cartsvc "github.com/electronicjova/storefront-backend/internal/cart"
)

// AddItemRequest is the body of POST /api/v1/cart/items.
type AddItemRequest struct {
	ProductID uuid.UUID   `json:"productId" validate:"required"`
	Count     int         `json:"count" validate:"gt=0,max=999"`
	OptionIDs []uuid.UUID `json:"optionIds" validate:"omitempty,dive,required"`
	Note      *string     `json:"note" validate:"omitempty,max=500"`
}

func toAddInput(req AddItemRequest) cartsvc.AddInput {
	input := cartsvc.AddInput{
		ProductID: req.ProductID,
		Count:     req.Count,
		OptionIDs: req.OptionIDs,
	}
	if req.Note != nil {
		note := validators.SanitizeString(*req.Note, 500)
		if note != "" {
			input.Note = &note
		}
	}
	return input
}
