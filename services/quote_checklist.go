package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteAddon is the part of an add-on a quote selection carries
type QuoteAddon struct {
	DepartmentID    *string
	IsChecklistItem bool
}

// QuoteLineSelection is an add-on picked on a quote line
type QuoteLineSelection struct {
	AddonID *string
	Addon   *QuoteAddon
}

// QuoteSelection ties a quote selection to the order part it was converted into.
// OrderPartID is nil for order-level selections.
type QuoteSelection struct {
	OrderPartID *string
	Selection   QuoteLineSelection
}

type quoteSelectionKey struct {
	partID  string
	addonID string
}

// BuildChecklistEntriesFromQuoteSelections derives the initial checklist rows for a converted order.
// Order-level selections, selections without an add-on and non-checklist add-ons are skipped;
// duplicate (part, add-on) pairs keep the first occurrence.
func BuildChecklistEntriesFromQuoteSelections(orderID string, selections []QuoteSelection) []models.OrderChecklist {
	seen := make(map[quoteSelectionKey]bool, len(selections))
	entries := make([]models.OrderChecklist, 0, len(selections))

	for _, s := range selections {
		if s.OrderPartID == nil || *s.OrderPartID == "" {
			continue
		}
		addonID := s.Selection.AddonID
		if addonID == nil || *addonID == "" {
			continue
		}
		addon := s.Selection.Addon
		if addon == nil || !addon.IsChecklistItem {
			continue
		}

		key := quoteSelectionKey{partID: *s.OrderPartID, addonID: *addonID}
		if seen[key] {
			continue
		}
		seen[key] = true

		partID := *s.OrderPartID
		aID := *addonID
		entries = append(entries, models.OrderChecklist{
			OrderID:      orderID,
			PartID:       &partID,
			AddonID:      &aID,
			DepartmentID: addon.DepartmentID,
			Completed:    false,
			IsActive:     true,
		})
	}
	return entries
}

// ConvertQuotePart is one part of the accepted quote
type ConvertQuotePart struct {
	PartNumber string
	Quantity   int
	Material   string
}

// ConvertQuoteSelection selects an add-on for the part at PartIndex, or for the whole order when PartIndex is nil
type ConvertQuoteSelection struct {
	PartIndex *int
	AddonID   string
	Quantity  decimal.Decimal
}

// ConvertQuoteInput is an accepted quote ready to become an order
type ConvertQuoteInput struct {
	QuoteID      string
	Code         string
	CustomerName string
	DueDate      *time.Time
	Priority     string
	Parts        []ConvertQuotePart
	Selections   []ConvertQuoteSelection
}

// QuoteConverter turns accepted quotes into orders
type QuoteConverter struct {
	db *gorm.DB
}

// NewQuoteConverter creates a quote converter
func NewQuoteConverter(db *gorm.DB) *QuoteConverter {
	return &QuoteConverter{db: db}
}

func validateConvertQuote(in ConvertQuoteInput) error {
	fields := FieldErrors{}
	fields.Required("quote_id", in.QuoteID)
	fields.Required("customer_name", in.CustomerName)
	if in.Priority != "" && !models.IsValidPriority(in.Priority) {
		fields.Add("priority", "must be one of LOW, NORMAL, RUSH, HOT")
	}
	if len(in.Parts) == 0 {
		fields.Add("parts", "must contain at least one part")
	}
	for i, p := range in.Parts {
		fields.Required(fmt.Sprintf("parts[%d].part_number", i), p.PartNumber)
		if p.Quantity <= 0 {
			fields.Add(fmt.Sprintf("parts[%d].quantity", i), "must be greater than 0")
		}
	}
	for i, s := range in.Selections {
		fields.Required(fmt.Sprintf("selections[%d].addon_id", i), s.AddonID)
		if s.PartIndex != nil && (*s.PartIndex < 0 || *s.PartIndex >= len(in.Parts)) {
			fields.Add(fmt.Sprintf("selections[%d].part_index", i), "does not reference a part")
		}
		if s.Quantity.IsNegative() {
			fields.Add(fmt.Sprintf("selections[%d].quantity", i), "must not be negative")
		}
	}
	return fields.Err()
}

// ConvertQuoteToOrder creates the order, its parts, one ADDON charge per selection and the seed
// checklist rows in a single transaction, then reconciles the checklist against the new charges.
func (c *QuoteConverter) ConvertQuoteToOrder(ctx context.Context, in ConvertQuoteInput) (*models.Order, error) {
	if err := validateConvertQuote(in); err != nil {
		return nil, err
	}

	order := models.Order{
		Code:         strings.TrimSpace(in.Code),
		CustomerName: strings.TrimSpace(in.CustomerName),
		DueDate:      in.DueDate,
		Priority:     in.Priority,
		Status:       models.OrderStatusReceived,
		QuoteID:      &in.QuoteID,
	}
	if order.Priority == "" {
		order.Priority = models.PriorityNormal
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Order{}).Where("quote_id = ?", in.QuoteID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check quote: %w", err)
		}
		if existing > 0 {
			return Conflict("quote %s has already been converted", in.QuoteID)
		}

		if err := tx.Create(&order).Error; err != nil {
			if isUniqueViolation(err) {
				return Conflict("order code %s is already in use", order.Code)
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		parts := make([]models.OrderPart, len(in.Parts))
		for i, p := range in.Parts {
			parts[i] = models.OrderPart{
				OrderID:    order.ID,
				PartNumber: strings.TrimSpace(p.PartNumber),
				Quantity:   p.Quantity,
				Material:   p.Material,
			}
		}
		if err := tx.Create(&parts).Error; err != nil {
			return fmt.Errorf("failed to create parts: %w", err)
		}
		order.Parts = parts

		addons, err := loadAddons(tx, in.Selections)
		if err != nil {
			return err
		}

		var charges []models.OrderCharge
		var selections []QuoteSelection
		for i, s := range in.Selections {
			addon := addons[s.AddonID]

			var partID *string
			if s.PartIndex != nil {
				partID = &parts[*s.PartIndex].ID
			}
			quantity := s.Quantity
			if quantity.IsZero() {
				quantity = decimal.NewFromInt(1)
			}
			addonID := addon.ID
			// ADDON charges need a department; unscoped add-ons are billed as fees
			kind := models.ChargeKindAddon
			if addon.DepartmentID == nil {
				kind = models.ChargeKindFee
			}
			charges = append(charges, models.OrderCharge{
				OrderID:      order.ID,
				PartID:       partID,
				Kind:         kind,
				DepartmentID: addon.DepartmentID,
				AddonID:      &addonID,
				Description:  addon.Name,
				Quantity:     quantity,
				UnitPrice:    addon.UnitPrice,
				SortOrder:    i,
			})
			selections = append(selections, QuoteSelection{
				OrderPartID: partID,
				Selection: QuoteLineSelection{
					AddonID: &addonID,
					Addon:   &QuoteAddon{DepartmentID: addon.DepartmentID, IsChecklistItem: addon.IsChecklistItem},
				},
			})
		}

		if len(charges) > 0 {
			if err := tx.Create(&charges).Error; err != nil {
				return fmt.Errorf("failed to create charges: %w", err)
			}
		}

		// seed rows for department-scoped add-ons are linked to their charge so the
		// synchronizer adopts them instead of creating a second row
		chargeFor := make(map[quoteSelectionKey]string, len(charges))
		for _, ch := range charges {
			if ch.PartID == nil || !ch.HasDepartment() {
				continue
			}
			key := quoteSelectionKey{partID: *ch.PartID, addonID: *ch.AddonID}
			if _, ok := chargeFor[key]; !ok {
				chargeFor[key] = ch.ID
			}
		}
		seeds := BuildChecklistEntriesFromQuoteSelections(order.ID, selections)
		for i := range seeds {
			row := &seeds[i]
			row.Label = addons[*row.AddonID].Name
			if id, ok := chargeFor[quoteSelectionKey{partID: *row.PartID, addonID: *row.AddonID}]; ok {
				chargeID := id
				row.ChargeID = &chargeID
			}
		}
		if len(seeds) > 0 {
			if err := tx.Create(&seeds).Error; err != nil {
				return fmt.Errorf("failed to create checklist: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := SyncChecklistForOrder(ctx, c.db, order.ID); err != nil {
		return nil, err
	}
	return &order, nil
}

func loadAddons(tx *gorm.DB, selections []ConvertQuoteSelection) (map[string]models.Addon, error) {
	ids := make([]string, 0, len(selections))
	for _, s := range selections {
		ids = append(ids, s.AddonID)
	}
	byID := make(map[string]models.Addon, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	var addons []models.Addon
	if err := tx.Where("id IN ?", ids).Find(&addons).Error; err != nil {
		return nil, fmt.Errorf("failed to load add-ons: %w", err)
	}
	for _, a := range addons {
		byID[a.ID] = a
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, NotFound("addon %s not found", id)
		}
	}
	return byID, nil
}
