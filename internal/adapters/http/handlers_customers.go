package web

import (
	"net/http"

	"coursebook/internal/application/listutil"
	"coursebook/internal/application/orchestrators"
	"coursebook/internal/application/projections"
)

// handleListCustomers handles GET /api/admin/customers?q=&sort=&page=&per_page=
func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	params := listutil.ParseListParams(r.URL.Query(), projections.CustomerSortColumns, nil)
	res, err := projections.QueryGetCustomerList(r.Context(), params, projections.GetCustomerListDeps{
		Customers: s.stores.Customers,
		Now:       s.now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, res, notice{})
}

// handleGetCustomer handles GET /api/admin/customers/{id}
func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.stores.Customers.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, projections.ViewCustomer(c, s.now()), notice{})
}

// handleCreateCustomer handles POST /api/admin/customers
// POST: 201 with the customer; 409 customer.email_taken for a known email
func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := orchestrators.ExecuteRegisterCustomer(r.Context(), orchestrators.RegisterCustomerInput{
		Actor:          actorOf(r),
		CustomerFields: fields,
	}, s.customerDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusCreated, projections.ViewCustomer(c, s.now()), noticeOf("notice.customer_created"))
}

// handleUpdateCustomer handles PUT (and form POST) /api/admin/customers/{id}
func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := orchestrators.ExecuteUpdateCustomer(r.Context(), orchestrators.UpdateCustomerInput{
		Actor:          actorOf(r),
		ID:             r.PathValue("id"),
		CustomerFields: fields,
	}, s.customerDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, projections.ViewCustomer(c, s.now()), noticeOf("notice.customer_updated"))
}

// handleDeleteCustomer handles DELETE /api/admin/customers/{id} and its form twin.
// Customers with active bookings are kept (409 customer.has_bookings).
func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteDeleteCustomer(r.Context(), orchestrators.DeleteCustomerInput{
		Actor: actorOf(r),
		ID:    r.PathValue("id"),
	}, s.customerDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, map[string]string{"id": r.PathValue("id")}, noticeOf("notice.customer_deleted"))
}

// handleCustomerBookings handles GET /api/admin/customers/{id}/bookings
func (s *Server) handleCustomerBookings(w http.ResponseWriter, r *http.Request) {
	res, err := projections.QueryGetCustomerBookings(r.Context(), r.PathValue("id"), s.customerBookingsDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, res, notice{})
}
