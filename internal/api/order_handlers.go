package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jogardn/roastery-orders/internal/orders"
	"github.com/jogardn/roastery-orders/internal/production"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/pkg/models"
)

const dateLayout = "2006-01-02"

type placeOrderRequest struct {
	Items []orders.LineRequest `json:"items"`
	Notes string               `json:"notes"`
}

func (s *Server) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user.Role != models.RoleCustomer {
		respondWithError(w, http.StatusForbidden, "Only customer accounts can place orders")
		return
	}

	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	order, err := s.orders.PlaceOrder(r.Context(), user, req.Items, req.Notes)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.OrderResponse{
		Success: true,
		Message: "Order placed",
		Order:   order,
	})
}

func (s *Server) Reorder(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user.Role != models.RoleCustomer {
		respondWithError(w, http.StatusForbidden, "Only customer accounts can place orders")
		return
	}

	order, err := s.orders.Reorder(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.OrderResponse{
		Success: true,
		Message: "Order placed again",
		Order:   order,
	})
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.Get(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

// ListMyOrders is the customer order history.
func (s *Server) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeArchived, _ := strconv.ParseBool(q.Get("include_archived"))
	filter := store.OrderFilter{
		CustomerID:      currentUser(r).ID,
		Status:          q.Get("status"),
		IncludeArchived: includeArchived,
	}
	s.listOrders(w, r, filter)
}

// ListAllOrders is the admin order board. archived=only|include.
func (s *Server) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.OrderFilter{
		CustomerID:   q.Get("customer_id"),
		Status:       q.Get("status"),
		ArchivedOnly: q.Get("archived") == "only",
	}
	filter.IncludeArchived = filter.ArchivedOnly || q.Get("archived") == "include"

	if v := q.Get("start"); v != "" {
		start, err := time.ParseInLocation(dateLayout, v, s.loc)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		filter.From = start
	}
	if v := q.Get("end"); v != "" {
		end, err := time.ParseInLocation(dateLayout, v, s.loc)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		filter.Before = nextDay(end)
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	s.listOrders(w, r, filter)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request, filter store.OrderFilter) {
	if filter.Status != "" && filter.Status != production.StatusFilterAll && !models.OrderStatus(filter.Status).Valid() {
		respondWithError(w, http.StatusBadRequest, "Unknown order status")
		return
	}
	list, err := s.orders.List(r.Context(), filter)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  list,
		"count":   len(list),
	})
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (s *Server) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	order, err := s.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.OrderResponse{Success: true, Message: "Status updated", Order: order})
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

func (s *Server) ArchiveOrder(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	order, err := s.orders.SetArchived(r.Context(), mux.Vars(r)["id"], req.Archived)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.OrderResponse{Success: true, Message: "Archive flag updated", Order: order})
}

// Production builds the schedule for ?start=&end= (inclusive calendar days
// in the configured zone, defaulting to today), ?status= and
// ?includeArchived=.
func (s *Server) Production(w http.ResponseWriter, r *http.Request) {
	opts, err := productionOptions(r, s.now(), s.loc)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	schedule, err := s.orders.ProductionSchedule(r.Context(), opts)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, schedule)
}

func productionOptions(r *http.Request, now time.Time, loc *time.Location) (production.Options, error) {
	q := r.URL.Query()
	today := now.In(loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	if v := q.Get("start"); v != "" {
		parsed, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return production.Options{}, badRequest("start must be YYYY-MM-DD")
		}
		start = parsed
	}
	end := start
	if v := q.Get("end"); v != "" {
		parsed, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return production.Options{}, badRequest("end must be YYYY-MM-DD")
		}
		end = parsed
	}
	if end.Before(start) {
		return production.Options{}, badRequest("end date is before start date")
	}

	status := q.Get("status")
	if status == "" {
		status = production.StatusFilterAll
	}
	if status != production.StatusFilterAll && !models.OrderStatus(status).Valid() {
		return production.Options{}, badRequest("unknown status %q", status)
	}

	includeArchived := false
	if v := q.Get("includeArchived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return production.Options{}, badRequest("includeArchived must be true or false")
		}
		includeArchived = b
	}

	return production.Options{
		StartDate:       start,
		EndDate:         endOfDay(end),
		StatusFilter:    status,
		IncludeArchived: includeArchived,
	}, nil
}

// nextDay is midnight after day's calendar date, in day's location.
func nextDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

// endOfDay is the last instant of day's calendar date.
func endOfDay(day time.Time) time.Time {
	return nextDay(day).Add(-time.Nanosecond)
}
