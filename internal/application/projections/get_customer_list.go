package projections

import (
	"context"
	"time"

	customerstore "coursebook/internal/adapters/storage/customer"
	"coursebook/internal/application/listutil"
	"coursebook/internal/domain/customer"
)

// CustomerSortColumns are the columns the customer list may be sorted by.
var CustomerSortColumns = []string{"name", "email", "created_at"}

// CustomerRow is one line of the customer list.
type CustomerRow struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	ChildName      string    `json:"child_name,omitempty"`
	ChildAgeMonths *int      `json:"child_age_months,omitempty"`
	HasAccount     bool      `json:"has_account"`
	CreatedAt      time.Time `json:"created_at"`
}

// CustomerView is the full record of one customer.
type CustomerView struct {
	CustomerRow
	ChildBirthDate   string `json:"child_birth_date,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// ViewCustomer converts a customer for display; the child's age is taken at now.
func ViewCustomer(c customer.Customer, now time.Time) CustomerView {
	v := CustomerView{
		CustomerRow:      customerRow(c, now),
		EmergencyContact: c.EmergencyContact,
		Notes:            c.Notes,
	}
	if !c.ChildBirthDate.IsZero() {
		v.ChildBirthDate = c.ChildBirthDate.Format("2006-01-02")
	}
	return v
}

func customerRow(c customer.Customer, now time.Time) CustomerRow {
	row := CustomerRow{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		ChildName:  c.ChildName,
		HasAccount: c.AccountID != "",
		CreatedAt:  c.CreatedAt,
	}
	if age := c.ChildAgeMonths(now); age >= 0 {
		row.ChildAgeMonths = &age
	}
	return row
}

// GetCustomerListResult carries the query result.
type GetCustomerListResult struct {
	Customers []CustomerRow     `json:"customers"`
	Page      listutil.PageInfo `json:"page"`
}

// GetCustomerListDeps holds dependencies for QueryGetCustomerList.
type GetCustomerListDeps struct {
	Customers CustomerStore
	Now       func() time.Time
}

// QueryGetCustomerList returns one page of customers.
// PRE: params parsed with listutil.ParseListParams
// POST: Page is clamped to the available range
func QueryGetCustomerList(ctx context.Context, params listutil.ListParams, deps GetCustomerListDeps) (GetCustomerListResult, error) {
	now := clock(deps.Now)
	filter := customerstore.ListFilter{Search: params.Search, SortBy: params.Sort, SortDir: params.Dir}

	total, err := deps.Customers.Count(ctx, filter)
	if err != nil {
		return GetCustomerListResult{}, err
	}
	info := listutil.NewPageInfo(params.Page, params.PerPage, total)
	filter.Limit = info.PerPage
	filter.Offset = info.Offset()

	customers, err := deps.Customers.List(ctx, filter)
	if err != nil {
		return GetCustomerListResult{}, err
	}
	rows := make([]CustomerRow, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, customerRow(c, now))
	}
	return GetCustomerListResult{Customers: rows, Page: info}, nil
}
