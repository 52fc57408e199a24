package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"detention-service/internal/model"
)

// LinkRenderer points at the document the rendering service serves for an
// invoice. It does not render anything itself.
type LinkRenderer struct {
	baseURL string
}

func NewLinkRenderer(baseURL string) *LinkRenderer {
	return &LinkRenderer{baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *LinkRenderer) Render(_ context.Context, invoice model.Invoice) (model.Document, error) {
	if invoice.ID == uuid.Nil {
		return model.Document{}, errors.New("invoice id is required")
	}
	return model.Document{
		URI:         fmt.Sprintf("%s/invoices/%s/document", r.baseURL, invoice.ID),
		ContentType: "application/pdf",
	}, nil
}
