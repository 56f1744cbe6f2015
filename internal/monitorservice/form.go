package monitorservice

import (
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/models"
)

// MonitorForm is a create request as typed by a user: lists are
// comma-separated and the recency window is integer text.
type MonitorForm struct {
	Name            string
	Organizations   string
	AreasOfInterest string
	RecencyDays     string
	Schedule        string
}

// FormError maps field names (JSON names of CreateMonitorRequest) to messages.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid monitor: " + strings.Join(parts, "; ")
}

func (e *FormError) Unwrap() error { return apperr.ErrInvalidInput }

// ParseForm converts a form into a normalized, validated request. Parse and
// validation problems are reported together in a *FormError.
func ParseForm(f MonitorForm) (models.CreateMonitorRequest, error) {
	req := models.CreateMonitorRequest{
		Name:            f.Name,
		Organizations:   SplitList(f.Organizations),
		AreasOfInterest: SplitList(f.AreasOfInterest),
		Schedule:        models.Schedule(strings.ToLower(strings.TrimSpace(f.Schedule))),
	}

	fields := map[string]string{}
	if raw := strings.TrimSpace(f.RecencyDays); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields["recency_days"] = "must be a whole number"
		} else {
			req.RecencyDays = n
		}
	}

	req = normalize(req)
	if err := validateRequest(req); err != nil {
		if fe, ok := err.(*FormError); ok {
			for k, v := range fe.Fields {
				if _, seen := fields[k]; !seen {
					fields[k] = v
				}
			}
		}
	}
	if len(fields) > 0 {
		return req, &FormError{Fields: fields}
	}
	return req, nil
}

// SplitList splits a comma-separated list, trimming entries and dropping
// empty ones.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalize(req models.CreateMonitorRequest) models.CreateMonitorRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Organizations = trimAll(req.Organizations)
	req.AreasOfInterest = trimAll(req.AreasOfInterest)
	if req.RecencyDays == 0 {
		req.RecencyDays = models.DefaultRecencyDays
	}
	if req.Schedule == "" {
		req.Schedule = models.ScheduleWeekly
	}
	return req
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func validateRequest(req models.CreateMonitorRequest) error {
	schedules := make([]any, len(models.Schedules))
	for i, s := range models.Schedules {
		schedules[i] = s
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&req.Organizations, validation.Required.Error("at least one organization is required")),
		validation.Field(&req.AreasOfInterest, validation.Required.Error("at least one area of interest is required")),
		validation.Field(&req.RecencyDays, validation.Min(1), validation.Max(365)),
		validation.Field(&req.Schedule, validation.In(schedules...).Error("must be daily, weekly or monthly")),
	)
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(errs))
	for k, v := range errs {
		fields[k] = v.Error()
	}
	return &FormError{Fields: fields}
}
