package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/facumancuso/minoil/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the order was modified since it was read; the
	// caller should reload and retry.
	ErrConflict = errors.New("revision conflict")
)

const orderColumns = `id,order_number,client,client_id,component,brand,serial_number,equipment,order_type,status,progress,revision,created_at,updated_at,
spare_parts_json,evaluation_reports_json,supplier_quotes_json,client_quotes_json,purchase_order_files_json,solped,purchase_order,
estimated_evaluation_start_date,evaluation_start_date,evaluation_end_date,evaluation_estimated_end_date,supplier_quotation_date,
client_quotation_date,client_quotation_approval_date,estimated_delivery_date,spare_parts_estimated_arrival_date,spare_parts_arrival_date,
assembly_start_date,assembly_estimated_end_date,assembly_end_date,delivery_date,evaluation_mechanics,assembly_mechanics,
is_viable_for_repair,is_stock_usage,parts_arrival_complete`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.WorkOrder, error) {
	var (
		o                                            domain.WorkOrder
		clientID, component, brand, serial, equip    sql.NullString
		solped, purchaseOrder                        sql.NullString
		spareParts, evalReports, supplierQuotes      sql.NullString
		clientQuotes, poFiles                        sql.NullString
		createdAt, updatedAt                         string
		estEvalStart, evalStart, evalEnd, evalEstEnd sql.NullString
		supplierQuot, clientQuot, clientApproval     sql.NullString
		estDelivery, partsEstArrival, partsArrival   sql.NullString
		asmStart, asmEstEnd, asmEnd, delivery        sql.NullString
		viable, stock                                sql.NullBool
		partsComplete                                bool
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Client, &clientID, &component, &brand, &serial, &equip,
		&o.OrderType, &o.Status, &o.Progress, &o.Revision, &createdAt, &updatedAt,
		&spareParts, &evalReports, &supplierQuotes, &clientQuotes, &poFiles,
		&solped, &purchaseOrder,
		&estEvalStart, &evalStart, &evalEnd, &evalEstEnd, &supplierQuot,
		&clientQuot, &clientApproval, &estDelivery, &partsEstArrival, &partsArrival,
		&asmStart, &asmEstEnd, &asmEnd, &delivery,
		&o.EvaluationMechanics, &o.AssemblyMechanics,
		&viable, &stock, &partsComplete,
	)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	o.ClientID = clientID.String
	o.Component = component.String
	o.Brand = brand.String
	o.SerialNumber = serial.String
	o.Equipment = equip.String
	o.Solped = solped.String
	o.PurchaseOrder = purchaseOrder.String
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return o, fmt.Errorf("order %s created_at: %w", o.ID, err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return o, fmt.Errorf("order %s updated_at: %w", o.ID, err)
	}
	o.EstimatedEvaluationStartDate = parseNullTime(estEvalStart)
	o.EvaluationStartDate = parseNullTime(evalStart)
	o.EvaluationEndDate = parseNullTime(evalEnd)
	o.EvaluationEstimatedEndDate = parseNullTime(evalEstEnd)
	o.SupplierQuotationDate = parseNullTime(supplierQuot)
	o.ClientQuotationDate = parseNullTime(clientQuot)
	o.ClientQuotationApprovalDate = parseNullTime(clientApproval)
	o.EstimatedDeliveryDate = parseNullTime(estDelivery)
	o.SparePartsEstimatedArrivalDate = parseNullTime(partsEstArrival)
	o.SparePartsArrivalDate = parseNullTime(partsArrival)
	o.AssemblyStartDate = parseNullTime(asmStart)
	o.AssemblyEstimatedEndDate = parseNullTime(asmEstEnd)
	o.AssemblyEndDate = parseNullTime(asmEnd)
	o.DeliveryDate = parseNullTime(delivery)
	if viable.Valid {
		v := viable.Bool
		o.IsViableForRepair = &v
	}
	if stock.Valid {
		v := stock.Bool
		o.IsStockUsage = &v
	}
	o.PartsArrivalComplete = partsComplete
	if err := unmarshalJSON(spareParts, &o.SpareParts); err != nil {
		return o, err
	}
	if err := unmarshalJSON(evalReports, &o.EvaluationReports); err != nil {
		return o, err
	}
	if err := unmarshalJSON(supplierQuotes, &o.SupplierQuotes); err != nil {
		return o, err
	}
	if err := unmarshalJSON(clientQuotes, &o.ClientQuotes); err != nil {
		return o, err
	}
	if err := unmarshalJSON(poFiles, &o.PurchaseOrderFiles); err != nil {
		return o, err
	}
	return o, nil
}

func orderArgs(o domain.WorkOrder) []any {
	return []any{
		o.ID, o.OrderNumber, o.Client, nullable(o.ClientID), nullable(o.Component),
		nullable(o.Brand), nullable(o.SerialNumber), nullable(o.Equipment),
		string(o.OrderType), string(o.Status), o.Progress, o.Revision,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
		marshalJSON(o.SpareParts), marshalJSON(o.EvaluationReports),
		marshalJSON(o.SupplierQuotes), marshalJSON(o.ClientQuotes),
		marshalJSON(o.PurchaseOrderFiles),
		nullable(o.Solped), nullable(o.PurchaseOrder),
		formatNullTime(o.EstimatedEvaluationStartDate),
		formatNullTime(o.EvaluationStartDate),
		formatNullTime(o.EvaluationEndDate),
		formatNullTime(o.EvaluationEstimatedEndDate),
		formatNullTime(o.SupplierQuotationDate),
		formatNullTime(o.ClientQuotationDate),
		formatNullTime(o.ClientQuotationApprovalDate),
		formatNullTime(o.EstimatedDeliveryDate),
		formatNullTime(o.SparePartsEstimatedArrivalDate),
		formatNullTime(o.SparePartsArrivalDate),
		formatNullTime(o.AssemblyStartDate),
		formatNullTime(o.AssemblyEstimatedEndDate),
		formatNullTime(o.AssemblyEndDate),
		formatNullTime(o.DeliveryDate),
		o.EvaluationMechanics, o.AssemblyMechanics,
		nullableBool(o.IsViableForRepair), nullableBool(o.IsStockUsage),
		o.PartsArrivalComplete,
	}
}

const orderPlaceholders = `?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?`

func (r Repo) InsertOrderTx(ctx context.Context, tx *sql.Tx, o domain.WorkOrder) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO work_orders(`+orderColumns+`) VALUES (`+orderPlaceholders+`)`,
		orderArgs(o)...)
	return err
}

// UpdateOrderTx replaces the whole order row, guarded by the revision the
// caller read. The stored revision is advanced by one; a mismatch returns
// ErrConflict and writes nothing.
func (r Repo) UpdateOrderTx(ctx context.Context, tx *sql.Tx, o domain.WorkOrder) (domain.WorkOrder, error) {
	readRevision := o.Revision
	o.Revision++
	res, err := tx.ExecContext(ctx, `UPDATE work_orders SET
		order_number=?,client=?,client_id=?,component=?,brand=?,serial_number=?,equipment=?,order_type=?,
		status=?,progress=?,revision=?,updated_at=?,
		spare_parts_json=?,evaluation_reports_json=?,supplier_quotes_json=?,client_quotes_json=?,purchase_order_files_json=?,
		solped=?,purchase_order=?,
		estimated_evaluation_start_date=?,evaluation_start_date=?,evaluation_end_date=?,evaluation_estimated_end_date=?,
		supplier_quotation_date=?,client_quotation_date=?,client_quotation_approval_date=?,estimated_delivery_date=?,
		spare_parts_estimated_arrival_date=?,spare_parts_arrival_date=?,
		assembly_start_date=?,assembly_estimated_end_date=?,assembly_end_date=?,delivery_date=?,
		evaluation_mechanics=?,assembly_mechanics=?,is_viable_for_repair=?,is_stock_usage=?,parts_arrival_complete=?
		WHERE id=? AND revision=?`,
		o.OrderNumber, o.Client, nullable(o.ClientID), nullable(o.Component), nullable(o.Brand),
		nullable(o.SerialNumber), nullable(o.Equipment), string(o.OrderType),
		string(o.Status), o.Progress, o.Revision, formatTime(o.UpdatedAt),
		marshalJSON(o.SpareParts), marshalJSON(o.EvaluationReports), marshalJSON(o.SupplierQuotes),
		marshalJSON(o.ClientQuotes), marshalJSON(o.PurchaseOrderFiles),
		nullable(o.Solped), nullable(o.PurchaseOrder),
		formatNullTime(o.EstimatedEvaluationStartDate), formatNullTime(o.EvaluationStartDate),
		formatNullTime(o.EvaluationEndDate), formatNullTime(o.EvaluationEstimatedEndDate),
		formatNullTime(o.SupplierQuotationDate), formatNullTime(o.ClientQuotationDate),
		formatNullTime(o.ClientQuotationApprovalDate), formatNullTime(o.EstimatedDeliveryDate),
		formatNullTime(o.SparePartsEstimatedArrivalDate), formatNullTime(o.SparePartsArrivalDate),
		formatNullTime(o.AssemblyStartDate), formatNullTime(o.AssemblyEstimatedEndDate),
		formatNullTime(o.AssemblyEndDate), formatNullTime(o.DeliveryDate),
		o.EvaluationMechanics, o.AssemblyMechanics,
		nullableBool(o.IsViableForRepair), nullableBool(o.IsStockUsage), o.PartsArrivalComplete,
		o.ID, readRevision)
	if err != nil {
		return o, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var exists int
		scanErr := tx.QueryRowContext(ctx, `SELECT 1 FROM work_orders WHERE id=?`, o.ID).Scan(&exists)
		if scanErr == sql.ErrNoRows {
			return o, ErrNotFound
		}
		if scanErr != nil {
			return o, scanErr
		}
		return o, ErrConflict
	}
	return o, nil
}

func (r Repo) getOrderRow(ctx context.Context, id string) (domain.WorkOrder, error) {
	return scanOrder(r.DB.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM work_orders WHERE id=?`, id))
}

// GetOrder loads an order with its full audit log.
func (r Repo) GetOrder(ctx context.Context, id string) (domain.WorkOrder, error) {
	o, err := r.getOrderRow(ctx, id)
	if err != nil {
		return o, err
	}
	o.Notes, err = r.ListNotes(ctx, o.ID)
	return o, err
}

// GetOrderByNumber looks an order up by its human-facing number.
func (r Repo) GetOrderByNumber(ctx context.Context, orderNumber string) (domain.WorkOrder, error) {
	o, err := scanOrder(r.DB.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM work_orders WHERE order_number=?`, orderNumber))
	if err != nil {
		return o, err
	}
	o.Notes, err = r.ListNotes(ctx, o.ID)
	return o, err
}

// ListOrders returns all orders, newest first, audit logs included.
func (r Repo) ListOrders(ctx context.Context) ([]domain.WorkOrder, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM work_orders ORDER BY created_at DESC, order_number DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Notes, err = r.ListNotes(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// AppendNoteTx appends one audit entry. This is the only write path into the
// notes table; entries are never updated or deleted.
func (r Repo) AppendNoteTx(ctx context.Context, tx *sql.Tx, orderID string, n domain.StageLogEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO work_order_notes(order_id,status,note,ts,actor) VALUES (?,?,?,?,?)`,
		orderID, string(n.Stage), n.Note, formatTime(n.Timestamp), n.User)
	return err
}

// ListNotes returns the audit log ordered by timestamp, ties broken by
// insertion order.
func (r Repo) ListNotes(ctx context.Context, orderID string) ([]domain.StageLogEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status,note,ts,actor FROM work_order_notes WHERE order_id=? ORDER BY ts ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StageLogEntry
	for rows.Next() {
		var (
			n  domain.StageLogEntry
			ts string
		)
		if err := rows.Scan(&n.Stage, &n.Note, &ts, &n.User); err != nil {
			return nil, err
		}
		if n.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("note for %s: %w", orderID, err)
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) DeleteOrder(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM work_orders WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- helpers ---

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func marshalJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return nil
	}
	return string(data)
}

func unmarshalJSON[T any](s sql.NullString, dst *T) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
