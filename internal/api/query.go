package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/service"
	"github.com/phrazzld/tasker-api/internal/store"
)

var orderingFields = map[string]bool{
	store.OrderCreatedAt: true,
	store.OrderUpdatedAt: true,
	store.OrderDueDate:   true,
	store.OrderPriority:  true,
	store.OrderStatus:    true,
	store.OrderTitle:     true,
}

// parseListParams reads filters, ordering and the page number from the query
// string. Every malformed filter is reported; a malformed page is not found.
func parseListParams(q url.Values) (service.ListParams, error) {
	var (
		params = service.ListParams{Page: 1}
		f      = &params.Filter
		errs   domain.ValidationErrors
	)

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return params, service.ErrPageNotFound
		}
		params.Page = page
	}

	if v := q.Get("status"); v != "" {
		s := domain.TaskStatus(v)
		if !s.Valid() {
			errs.Add("status", "must be one of todo, in_progress, completed")
		}
		f.Status = &s
	}
	if v := q.Get("priority"); v != "" {
		p := domain.TaskPriority(v)
		if !p.Valid() {
			errs.Add("priority", "must be one of low, medium, high")
		}
		f.Priority = &p
	}

	f.DueAfter = parseTimeParam(q, "due_date_after", &errs)
	f.DueBefore = parseTimeParam(q, "due_date_before", &errs)
	f.CreatedAfter = parseTimeParam(q, "created_after", &errs)
	f.CreatedBefore = parseTimeParam(q, "created_before", &errs)
	f.Overdue = parseBoolParam(q, "is_overdue", &errs)
	f.HasDueDate = parseBoolParam(q, "has_due_date", &errs)
	f.Search = strings.TrimSpace(q.Get("search"))

	if v := q.Get("tags"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				errs.Add("tags", "must be a comma-separated list of tag ids")
				break
			}
			f.TagIDs = append(f.TagIDs, id)
		}
	}

	if v := q.Get("ordering"); v != "" {
		field := strings.TrimPrefix(v, "-")
		if !orderingFields[field] {
			errs.Add("ordering", "unsupported ordering field")
		} else {
			f.Ordering = store.TaskOrdering{Field: field, Desc: strings.HasPrefix(v, "-")}
		}
	}

	return params, errs.Err()
}

func parseTimeParam(q url.Values, name string, errs *domain.ValidationErrors) *time.Time {
	v := q.Get(name)
	if v == "" {
		return nil
	}
	t, err := ParseDueDate(v)
	if err != nil {
		errs.Add(name, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
		return nil
	}
	return &t
}

func parseBoolParam(q url.Values, name string, errs *domain.ValidationErrors) *bool {
	v := q.Get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		errs.Add(name, "must be true or false")
		return nil
	}
	return &b
}

// pageURL returns the absolute URL of the given page of the current listing.
// Page 1 drops the page parameter.
func pageURL(r *http.Request, page int) *string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	s := u.String()
	return &s
}

func pageToResponse(r *http.Request, p *service.TaskPage, now time.Time) PageResponse {
	resp := PageResponse{Count: p.Total, Results: make([]TaskResponse, 0, len(p.Tasks))}
	for _, t := range p.Tasks {
		resp.Results = append(resp.Results, taskToResponse(t, now))
	}
	if p.HasNext() {
		resp.Next = pageURL(r, p.Page+1)
	}
	if p.HasPrevious() {
		resp.Previous = pageURL(r, p.Page-1)
	}
	return resp
}
