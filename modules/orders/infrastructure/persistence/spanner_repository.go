package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	platformspanner "github.com/unitygrave/cardshop/internal/platform/spanner"
	"github.com/unitygrave/cardshop/modules/orders/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// orderRow mirrors the Orders table. Money columns are minor units; the base
// and display currency codes apply to their respective columns.
type orderRow struct {
	OrderID         string              `spanner:"OrderID"`
	OrderNumber     string              `spanner:"OrderNumber"`
	UserID          spanner.NullString  `spanner:"UserID"`
	SessionID       string              `spanner:"SessionID"`
	Status          string              `spanner:"Status"`
	PaymentStatus   string              `spanner:"PaymentStatus"`
	PaymentMethod   string              `spanner:"PaymentMethod"`
	ContactName     string              `spanner:"ContactName"`
	ContactEmail    string              `spanner:"ContactEmail"`
	ContactPhone    string              `spanner:"ContactPhone"`
	ShipLine1       string              `spanner:"ShipLine1"`
	ShipLine2       string              `spanner:"ShipLine2"`
	ShipCity        string              `spanner:"ShipCity"`
	ShipRegion      string              `spanner:"ShipRegion"`
	ShipPostalCode  string              `spanner:"ShipPostalCode"`
	ShipCountry     string              `spanner:"ShipCountry"`
	Instructions    string              `spanner:"Instructions"`
	BaseCurrency    string              `spanner:"BaseCurrency"`
	SubtotalBase    int64               `spanner:"SubtotalBase"`
	TaxBase         int64               `spanner:"TaxBase"`
	ShippingBase    int64               `spanner:"ShippingBase"`
	TotalBase       int64               `spanner:"TotalBase"`
	DisplayCurrency string              `spanner:"DisplayCurrency"`
	SubtotalDisplay int64               `spanner:"SubtotalDisplay"`
	TaxDisplay      int64               `spanner:"TaxDisplay"`
	ShippingDisplay int64               `spanner:"ShippingDisplay"`
	TotalDisplay    int64               `spanner:"TotalDisplay"`
	ExchangeRate    spanner.NullNumeric `spanner:"ExchangeRate"`
	CreatedAt       time.Time           `spanner:"CreatedAt"`
	UpdatedAt       time.Time           `spanner:"UpdatedAt"`
	ShippedAt       spanner.NullTime    `spanner:"ShippedAt"`
	DeliveredAt     spanner.NullTime    `spanner:"DeliveredAt"`
	CancelledAt     spanner.NullTime    `spanner:"CancelledAt"`
	RefundedAt      spanner.NullTime    `spanner:"RefundedAt"`
}

type itemRow struct {
	OrderID          string `spanner:"OrderID"`
	ItemIndex        int64  `spanner:"ItemIndex"`
	ProductID        string `spanner:"ProductID"`
	ProductName      string `spanner:"ProductName"`
	SKU              string `spanner:"SKU"`
	Quantity         int64  `spanner:"Quantity"`
	UnitPriceDisplay int64  `spanner:"UnitPriceDisplay"`
	UnitPriceBase    int64  `spanner:"UnitPriceBase"`
	LineTotalDisplay int64  `spanner:"LineTotalDisplay"`
	LineTotalBase    int64  `spanner:"LineTotalBase"`
}

type refundRow struct {
	OrderID     string    `spanner:"OrderID"`
	RefundIndex int64     `spanner:"RefundIndex"`
	Amount      int64     `spanner:"Amount"`
	Reason      string    `spanner:"Reason"`
	Actor       string    `spanner:"Actor"`
	CreatedAt   time.Time `spanner:"CreatedAt"`
}

type noteRow struct {
	OrderID   string    `spanner:"OrderID"`
	NoteIndex int64     `spanner:"NoteIndex"`
	Text      string    `spanner:"Text"`
	Actor     string    `spanner:"Actor"`
	CreatedAt time.Time `spanner:"CreatedAt"`
}

const orderColumnList = `OrderID, OrderNumber, UserID, SessionID, Status, PaymentStatus, PaymentMethod,
	ContactName, ContactEmail, ContactPhone, ShipLine1, ShipLine2, ShipCity, ShipRegion, ShipPostalCode, ShipCountry,
	Instructions, BaseCurrency, SubtotalBase, TaxBase, ShippingBase, TotalBase,
	DisplayCurrency, SubtotalDisplay, TaxDisplay, ShippingDisplay, TotalDisplay, ExchangeRate,
	CreatedAt, UpdatedAt, ShippedAt, DeliveredAt, CancelledAt, RefundedAt`

const (
	itemColumnList   = `OrderID, ItemIndex, ProductID, ProductName, SKU, Quantity, UnitPriceDisplay, UnitPriceBase, LineTotalDisplay, LineTotalBase`
	refundColumnList = `OrderID, RefundIndex, Amount, Reason, Actor, CreatedAt`
	noteColumnList   = `OrderID, NoteIndex, Text, Actor, CreatedAt`
)

// SpannerRepository stores an order across Orders and its interleaved
// OrderItems, OrderRefunds and OrderNotes tables. Child rows are keyed by
// position; items never change after placement and refunds and notes are
// append-only, so saves only ever upsert.
type SpannerRepository struct {
	client *spanner.Client
}

func NewSpannerRepository(client *spanner.Client) *SpannerRepository {
	return &SpannerRepository{client: client}
}

func (r *SpannerRepository) Save(ctx context.Context, order *domain.Order) error {
	row := toOrderRow(order)
	m, err := spanner.InsertOrUpdateStruct("Orders", row)
	if err != nil {
		return fmt.Errorf("failed to build order mutation: %w", err)
	}
	mutations := []*spanner.Mutation{m}

	for i, it := range order.Items() {
		m, err := spanner.InsertOrUpdateStruct("OrderItems", itemRow{
			OrderID:          row.OrderID,
			ItemIndex:        int64(i),
			ProductID:        it.ProductID.String(),
			ProductName:      it.ProductName,
			SKU:              it.SKU,
			Quantity:         int64(it.Quantity),
			UnitPriceDisplay: it.UnitPriceDisplay.Amount(),
			UnitPriceBase:    it.UnitPriceBase.Amount(),
			LineTotalDisplay: it.LineTotalDisplay.Amount(),
			LineTotalBase:    it.LineTotalBase.Amount(),
		})
		if err != nil {
			return fmt.Errorf("failed to build item mutation: %w", err)
		}
		mutations = append(mutations, m)
	}
	for i, rf := range order.Refunds() {
		m, err := spanner.InsertOrUpdateStruct("OrderRefunds", refundRow{
			OrderID:     row.OrderID,
			RefundIndex: int64(i),
			Amount:      rf.Amount.Amount(),
			Reason:      rf.Reason,
			Actor:       rf.Actor,
			CreatedAt:   rf.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to build refund mutation: %w", err)
		}
		mutations = append(mutations, m)
	}
	for i, n := range order.Notes() {
		m, err := spanner.InsertOrUpdateStruct("OrderNotes", noteRow{
			OrderID:   row.OrderID,
			NoteIndex: int64(i),
			Text:      n.Text,
			Actor:     n.Actor,
			CreatedAt: n.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to build note mutation: %w", err)
		}
		mutations = append(mutations, m)
	}

	return platformspanner.Apply(ctx, r.client, mutations)
}

func (r *SpannerRepository) FindByID(ctx context.Context, id types.OrderID) (*domain.Order, error) {
	return r.findOne(ctx, spanner.Statement{
		SQL:    `SELECT ` + orderColumnList + ` FROM Orders WHERE OrderID = @id`,
		Params: map[string]interface{}{"id": id.String()},
	})
}

func (r *SpannerRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.findOne(ctx, spanner.Statement{
		SQL:    `SELECT ` + orderColumnList + ` FROM Orders@{FORCE_INDEX=OrdersByNumber} WHERE OrderNumber = @number`,
		Params: map[string]interface{}{"number": number},
	})
}

func (r *SpannerRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	_, err := reader.ReadRowUsingIndex(ctx, "Orders", "OrdersByNumber", spanner.Key{number}, []string{"OrderNumber"})
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check order number: %w", err)
	}
	return true, nil
}

func (r *SpannerRepository) FindByUserID(ctx context.Context, userID types.UserID, offset, limit int) ([]*domain.Order, int, error) {
	// COUNT, page and children must come from one snapshot.
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	countIter := reader.Query(ctx, spanner.Statement{
		SQL:    `SELECT COUNT(*) FROM Orders WHERE UserID = @userID`,
		Params: map[string]interface{}{"userID": userID.String()},
	})
	defer countIter.Stop()

	var total int64
	countRow, err := countIter.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	if countRow != nil {
		if err := countRow.Columns(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}

	iter := reader.Query(ctx, spanner.Statement{
		SQL: `SELECT ` + orderColumnList + `
		      FROM Orders@{FORCE_INDEX=OrdersByUserID}
		      WHERE UserID = @userID
		      ORDER BY CreatedAt DESC, OrderNumber DESC
		      LIMIT @limit OFFSET @offset`,
		Params: map[string]interface{}{
			"userID": userID.String(),
			"limit":  int64(limit),
			"offset": int64(offset),
		},
	})
	defer iter.Stop()

	var rows []orderRow
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to query orders: %w", err)
		}
		var or orderRow
		if err := row.ToStruct(&or); err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		rows = append(rows, or)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for _, or := range rows {
		order, err := r.assemble(ctx, reader, or)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, int(total), nil
}

func (r *SpannerRepository) findOne(ctx context.Context, stmt spanner.Statement) (*domain.Order, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	iter := reader.Query(ctx, stmt)
	defer iter.Stop()

	row, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	var or orderRow
	if err := row.ToStruct(&or); err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	iter.Stop()

	return r.assemble(ctx, reader, or)
}

func (r *SpannerRepository) assemble(ctx context.Context, reader platformspanner.ReadTransaction, or orderRow) (*domain.Order, error) {
	var items []itemRow
	if err := readChildren(ctx, reader, "OrderItems", itemColumnList, "ItemIndex", or.OrderID, &items); err != nil {
		return nil, err
	}
	var refunds []refundRow
	if err := readChildren(ctx, reader, "OrderRefunds", refundColumnList, "RefundIndex", or.OrderID, &refunds); err != nil {
		return nil, err
	}
	var notes []noteRow
	if err := readChildren(ctx, reader, "OrderNotes", noteColumnList, "NoteIndex", or.OrderID, &notes); err != nil {
		return nil, err
	}
	return fromRows(or, items, refunds, notes)
}

// readChildren loads every interleaved row under orderID, in key order.
func readChildren[T any](ctx context.Context, reader platformspanner.ReadTransaction, table, columns, orderBy, orderID string, dst *[]T) error {
	iter := reader.Query(ctx, spanner.Statement{
		SQL:    fmt.Sprintf(`SELECT %s FROM %s WHERE OrderID = @id ORDER BY %s`, columns, table, orderBy),
		Params: map[string]interface{}{"id": orderID},
	})
	defer iter.Stop()

	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", table, err)
		}
		var v T
		if err := row.ToStruct(&v); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		*dst = append(*dst, v)
	}
}

func toOrderRow(o *domain.Order) orderRow {
	base, display := o.BaseTotals(), o.DisplayTotals()
	contact, ship := o.Contact(), o.ShippingAddress()
	row := orderRow{
		OrderID:         o.ID().String(),
		OrderNumber:     o.Number(),
		UserID:          spanner.NullString{StringVal: o.UserID().String(), Valid: !o.UserID().IsZero()},
		SessionID:       o.SessionID(),
		Status:          o.Status().String(),
		PaymentStatus:   o.PaymentStatus().String(),
		PaymentMethod:   o.PaymentMethod().String(),
		ContactName:     contact.Name,
		ContactEmail:    contact.Email,
		ContactPhone:    contact.Phone,
		ShipLine1:       ship.Line1,
		ShipLine2:       ship.Line2,
		ShipCity:        ship.City,
		ShipRegion:      ship.Region,
		ShipPostalCode:  ship.PostalCode,
		ShipCountry:     ship.Country,
		Instructions:    o.Instructions(),
		BaseCurrency:    base.Total.Currency(),
		SubtotalBase:    base.Subtotal.Amount(),
		TaxBase:         base.Tax.Amount(),
		ShippingBase:    base.Shipping.Amount(),
		TotalBase:       base.Total.Amount(),
		DisplayCurrency: display.Total.Currency(),
		SubtotalDisplay: display.Subtotal.Amount(),
		TaxDisplay:      display.Tax.Amount(),
		ShippingDisplay: display.Shipping.Amount(),
		TotalDisplay:    display.Total.Amount(),
		ExchangeRate:    spanner.NullNumeric{Numeric: *o.Rate().Rate.Rat(), Valid: true},
		CreatedAt:       o.CreatedAt(),
		UpdatedAt:       o.UpdatedAt(),
		ShippedAt:       nullTime(o.ShippedAt()),
		DeliveredAt:     nullTime(o.DeliveredAt()),
		CancelledAt:     nullTime(o.CancelledAt()),
		RefundedAt:      nullTime(o.RefundedAt()),
	}
	return row
}

func fromRows(or orderRow, items []itemRow, refunds []refundRow, notes []noteRow) (*domain.Order, error) {
	id, err := types.ParseOrderID(or.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order id: %w", err)
	}
	var userID types.UserID
	if or.UserID.Valid {
		if userID, err = types.ParseUserID(or.UserID.StringVal); err != nil {
			return nil, fmt.Errorf("failed to parse user id: %w", err)
		}
	}
	rate := decimal.NewFromInt(1)
	if or.ExchangeRate.Valid {
		if rate, err = decimal.NewFromString(spanner.NumericString(&or.ExchangeRate.Numeric)); err != nil {
			return nil, fmt.Errorf("failed to parse exchange rate: %w", err)
		}
	}

	baseMoney := func(v int64) types.Money { return types.MustNewMoney(v, or.BaseCurrency) }
	displayMoney := func(v int64) types.Money { return types.MustNewMoney(v, or.DisplayCurrency) }

	orderItems := make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		productID, err := types.ParseProductID(it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse product id: %w", err)
		}
		orderItems = append(orderItems, domain.OrderItem{
			ProductID:        productID,
			ProductName:      it.ProductName,
			SKU:              it.SKU,
			Quantity:         int(it.Quantity),
			UnitPriceDisplay: displayMoney(it.UnitPriceDisplay),
			UnitPriceBase:    baseMoney(it.UnitPriceBase),
			LineTotalDisplay: displayMoney(it.LineTotalDisplay),
			LineTotalBase:    baseMoney(it.LineTotalBase),
		})
	}
	orderRefunds := make([]domain.Refund, 0, len(refunds))
	for _, rf := range refunds {
		orderRefunds = append(orderRefunds, domain.Refund{
			Amount: baseMoney(rf.Amount), Reason: rf.Reason, Actor: rf.Actor, CreatedAt: rf.CreatedAt,
		})
	}
	orderNotes := make([]domain.Note, 0, len(notes))
	for _, n := range notes {
		orderNotes = append(orderNotes, domain.Note{Text: n.Text, Actor: n.Actor, CreatedAt: n.CreatedAt})
	}

	return domain.Reconstitute(domain.ReconstituteParams{
		ID:            id,
		Number:        or.OrderNumber,
		UserID:        userID,
		SessionID:     or.SessionID,
		Status:        domain.Status(or.Status),
		PaymentStatus: domain.PaymentStatus(or.PaymentStatus),
		PaymentMethod: domain.PaymentMethod(or.PaymentMethod),
		Contact:       domain.Contact{Name: or.ContactName, Email: or.ContactEmail, Phone: or.ContactPhone},
		Shipping: domain.Address{
			Line1: or.ShipLine1, Line2: or.ShipLine2, City: or.ShipCity,
			Region: or.ShipRegion, PostalCode: or.ShipPostalCode, Country: or.ShipCountry,
		},
		Instructions: or.Instructions,
		Base: domain.Totals{
			Subtotal: baseMoney(or.SubtotalBase), Tax: baseMoney(or.TaxBase),
			Shipping: baseMoney(or.ShippingBase), Total: baseMoney(or.TotalBase),
		},
		Display: domain.Totals{
			Subtotal: displayMoney(or.SubtotalDisplay), Tax: displayMoney(or.TaxDisplay),
			Shipping: displayMoney(or.ShippingDisplay), Total: displayMoney(or.TotalDisplay),
		},
		Rate:        domain.RateSnapshot{BaseCurrency: or.BaseCurrency, DisplayCurrency: or.DisplayCurrency, Rate: rate},
		Items:       orderItems,
		Refunds:     orderRefunds,
		Notes:       orderNotes,
		CreatedAt:   or.CreatedAt,
		UpdatedAt:   or.UpdatedAt,
		ShippedAt:   timePtr(or.ShippedAt),
		DeliveredAt: timePtr(or.DeliveredAt),
		CancelledAt: timePtr(or.CancelledAt),
		RefundedAt:  timePtr(or.RefundedAt),
	}), nil
}

func nullTime(t *time.Time) spanner.NullTime {
	if t == nil {
		return spanner.NullTime{}
	}
	return spanner.NullTime{Time: *t, Valid: true}
}

func timePtr(t spanner.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var _ domain.OrderRepository = (*SpannerRepository)(nil)
