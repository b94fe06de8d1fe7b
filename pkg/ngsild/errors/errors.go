package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrBadRequest = fmt.Errorf("bad request")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrForbidden = fmt.Errorf("access denied")
var ErrInternal = fmt.Errorf("internal error")
var ErrInvalidRequest = fmt.Errorf("invalid request")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrTooManyResults = fmt.Errorf("too many results")
var ErrUnknownTenant = fmt.Errorf("unknown tenant")

type ngsiError struct {
	msg    string
	target error
}

func (e ngsiError) Error() string        { return e.msg }
func (e ngsiError) Is(target error) bool { return target == e.target }

func NewAlreadyExistsError(msg string) error {
	return &ngsiError{msg: msg, target: ErrAlreadyExists}
}

func NewBadRequestDataError(msg string) error {
	return &ngsiError{msg: msg, target: ErrBadRequest}
}

func NewForbiddenError(msg string) error {
	return &ngsiError{msg: msg, target: ErrForbidden}
}

func NewInvalidRequestError(msg string) error {
	return &ngsiError{msg: msg, target: ErrInvalidRequest}
}

func NewNotFoundError(msg string) error {
	return &ngsiError{msg: msg, target: ErrNotFound}
}

func NewTooManyResultsError(msg string) error {
	return &ngsiError{msg: msg, target: ErrTooManyResults}
}

func NewUnknownTenantError(msg string) error {
	return &ngsiError{msg: msg, target: ErrUnknownTenant}
}

const (
	TypeAccessDenied      string = "https://uri.etsi.org/ngsi-ld/errors/AccessDenied"
	TypeAlreadyExists     string = "https://uri.etsi.org/ngsi-ld/errors/AlreadyExists"
	TypeBadRequestData    string = "https://uri.etsi.org/ngsi-ld/errors/BadRequestData"
	TypeInternalError     string = "https://uri.etsi.org/ngsi-ld/errors/InternalError"
	TypeInvalidRequest    string = "https://uri.etsi.org/ngsi-ld/errors/InvalidRequest"
	TypeNonexistentTenant string = "https://uri.etsi.org/ngsi-ld/errors/NonexistentTenant"
	TypeResourceNotFound  string = "https://uri.etsi.org/ngsi-ld/errors/ResourceNotFound"
	TypeTooManyResults    string = "https://uri.etsi.org/ngsi-ld/errors/TooManyResults"
)

// NewErrorFromProblemReport converts a problem report received from a remote
// broker into one of the sentinel errors in this package
func NewErrorFromProblemReport(code int, contentType string, body []byte) error {
	report := &struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{}

	err := json.Unmarshal(body, report)
	if err != nil {
		return fmt.Errorf("failed to process problem report from context source: %s", err.Error())
	}

	switch {
	case code == http.StatusNotFound && report.Type == TypeNonexistentTenant:
		return NewUnknownTenantError(report.Detail)
	case code == http.StatusNotFound || report.Type == TypeResourceNotFound:
		return NewNotFoundError(report.Detail)
	case report.Type == TypeBadRequestData:
		return NewBadRequestDataError(report.Detail)
	case report.Type == TypeInvalidRequest:
		return NewInvalidRequestError(report.Detail)
	case report.Type == TypeAlreadyExists:
		return NewAlreadyExistsError(report.Detail)
	case report.Type == TypeTooManyResults:
		return NewTooManyResultsError(report.Detail)
	case code == http.StatusForbidden || report.Type == TypeAccessDenied:
		return NewForbiddenError(report.Detail)
	}

	return NewInternalError(
		fmt.Sprintf("[code: %d] unknown problem report of type \"%s\" with detail \"%s\" received",
			code, report.Type, report.Detail,
		),
		"",
	)
}

//ProblemDetails stores details about a certain problem according to RFC7807
//See https://tools.ietf.org/html/rfc7807
type ProblemDetails interface {
	ContentType() string
	Type() string
	Title() string
	Detail() string
	ResponseCode() int
	MarshalJSON() ([]byte, error)
	WriteResponse(w http.ResponseWriter)
}

//ProblemDetailsImpl is an implementation of the ProblemDetails interface
type ProblemDetailsImpl struct {
	typ     string
	title   string
	detail  string
	code    int
	traceID string
}

const (
	//ProblemReportContentType as required by https://tools.ietf.org/html/rfc7807
	ProblemReportContentType string = "application/problem+json"
)

func newProblem(typ, title, detail string, code int, traceID string) ProblemDetailsImpl {
	return ProblemDetailsImpl{
		typ:     typ,
		title:   title,
		detail:  detail,
		code:    code,
		traceID: traceID,
	}
}

//AccessDenied reports that the request was rejected by the authorization policies
type AccessDenied struct {
	ProblemDetailsImpl
}

func NewAccessDenied(detail, traceID string) *AccessDenied {
	return &AccessDenied{newProblem(TypeAccessDenied, "Access Denied", detail, http.StatusForbidden, traceID)}
}

func ReportAccessDenied(w http.ResponseWriter, detail, traceID string) {
	NewAccessDenied(detail, traceID).WriteResponse(w)
}

//AlreadyExists reports that the request tries to create an already existing entity
type AlreadyExists struct {
	ProblemDetailsImpl
}

//NewAlreadyExists creates and returns a new instance of an AlreadyExists with the supplied problem detail
func NewAlreadyExists(detail, traceID string) *AlreadyExists {
	return &AlreadyExists{newProblem(TypeAlreadyExists, "Already Exists", detail, http.StatusConflict, traceID)}
}

//ReportNewAlreadyExistsError creates an AlreadyExists instance and sends it to the supplied http.ResponseWriter
func ReportNewAlreadyExistsError(w http.ResponseWriter, detail, traceID string) {
	NewAlreadyExists(detail, traceID).WriteResponse(w)
}

//BadRequestData reports that the request includes input data which does not meet the requirements of the operation
type BadRequestData struct {
	ProblemDetailsImpl
}

//NewBadRequestData creates and returns a new instance of a BadRequestData with the supplied problem detail
func NewBadRequestData(detail, traceID string) *BadRequestData {
	return &BadRequestData{newProblem(TypeBadRequestData, "Bad Request Data", detail, http.StatusBadRequest, traceID)}
}

//ReportNewBadRequestData creates a BadRequestData instance and sends it to the supplied http.ResponseWriter
func ReportNewBadRequestData(w http.ResponseWriter, detail, traceID string) {
	NewBadRequestData(detail, traceID).WriteResponse(w)
}

//InvalidRequest reports that the request associated to the operation is syntactically
//invalid or includes wrong content
type InvalidRequest struct {
	ProblemDetailsImpl
}

//NewInvalidRequest creates and returns a new instance of an InvalidRequest with the supplied problem detail
func NewInvalidRequest(detail, traceID string) *InvalidRequest {
	return &InvalidRequest{newProblem(TypeInvalidRequest, "Invalid Request", detail, http.StatusBadRequest, traceID)}
}

//ReportNewInvalidRequest creates an InvalidRequest instance and sends it to the supplied http.ResponseWriter
func ReportNewInvalidRequest(w http.ResponseWriter, detail, traceID string) {
	NewInvalidRequest(detail, traceID).WriteResponse(w)
}

//InternalError reports that there has been an error during the operation execution
type InternalError struct {
	ProblemDetailsImpl
}

func (ie InternalError) Error() string {
	return ie.detail
}

func (ie InternalError) Is(target error) bool {
	return target == ErrInternal
}

//NewInternalError creates and returns a new instance of an InternalError with the supplied problem detail
func NewInternalError(detail, traceID string) *InternalError {
	return &InternalError{newProblem(TypeInternalError, "Internal Error", detail, http.StatusInternalServerError, traceID)}
}

//ReportNewInternalError creates an InternalError instance and sends it to the supplied http.ResponseWriter
func ReportNewInternalError(w http.ResponseWriter, detail, traceID string) {
	NewInternalError(detail, traceID).WriteResponse(w)
}

//NotFound reports that the request failed with a not found error of some kind
type NotFound struct {
	ProblemDetailsImpl
}

//NewNotFound creates and returns a new instance of a NotFound with the supplied problem detail
func NewNotFound(detail, traceID string) *NotFound {
	return &NotFound{newProblem(TypeResourceNotFound, "Not Found", detail, http.StatusNotFound, traceID)}
}

//ReportNotFoundError creates a NotFound instance and sends it to the supplied http.ResponseWriter
func ReportNotFoundError(w http.ResponseWriter, detail, traceID string) {
	NewNotFound(detail, traceID).WriteResponse(w)
}

//TooManyResults reports that the requested page size exceeds what the broker is configured to return
type TooManyResults struct {
	ProblemDetailsImpl
}

func NewTooManyResults(detail, traceID string) *TooManyResults {
	return &TooManyResults{newProblem(TypeTooManyResults, "Too Many Results", detail, http.StatusForbidden, traceID)}
}

func ReportTooManyResults(w http.ResponseWriter, detail, traceID string) {
	NewTooManyResults(detail, traceID).WriteResponse(w)
}

//UnknownTenant reports that the request tries to interact with an unknown tenant
type UnknownTenant struct {
	ProblemDetailsImpl
}

//NewUnknownTenant creates and returns a new instance of an UnknownTenant with the supplied problem detail
func NewUnknownTenant(detail, traceID string) *UnknownTenant {
	return &UnknownTenant{newProblem(TypeNonexistentTenant, "Non Existent Tenant", detail, http.StatusNotFound, traceID)}
}

//ReportUnknownTenantError creates an UnknownTenant instance and sends it to the supplied http.ResponseWriter
func ReportUnknownTenantError(w http.ResponseWriter, detail, traceID string) {
	NewUnknownTenant(detail, traceID).WriteResponse(w)
}

// ReportError selects the problem type matching the sentinel wrapped by err
// and writes it to w. Errors that match no sentinel are reported as internal errors.
func ReportError(w http.ResponseWriter, err error, traceID string) {
	ProblemFromError(err, traceID).WriteResponse(w)
}

// ProblemFromError maps an error onto the problem details that should be sent to a client
func ProblemFromError(err error, traceID string) ProblemDetails {
	detail := err.Error()

	switch {
	case errors.Is(err, ErrBadRequest):
		return NewBadRequestData(detail, traceID)
	case errors.Is(err, ErrInvalidRequest):
		return NewInvalidRequest(detail, traceID)
	case errors.Is(err, ErrNotFound):
		return NewNotFound(detail, traceID)
	case errors.Is(err, ErrUnknownTenant):
		return NewUnknownTenant(detail, traceID)
	case errors.Is(err, ErrForbidden):
		return NewAccessDenied(detail, traceID)
	case errors.Is(err, ErrTooManyResults):
		return NewTooManyResults(detail, traceID)
	case errors.Is(err, ErrAlreadyExists):
		return NewAlreadyExists(detail, traceID)
	}

	return NewInternalError(detail, traceID)
}

//ContentType returns the ContentType to be used when returning this problem
func (p *ProblemDetailsImpl) ContentType() string {
	return ProblemReportContentType
}

func (p *ProblemDetailsImpl) Type() string   { return p.typ }
func (p *ProblemDetailsImpl) Title() string  { return p.title }
func (p *ProblemDetailsImpl) Detail() string { return p.detail }

//MarshalJSON is called when a ProblemDetailsImpl instance should be serialized to JSON
func (p *ProblemDetailsImpl) MarshalJSON() ([]byte, error) {
	var traceID *string

	if p.traceID != "" {
		traceID = &p.traceID
	}

	return json.Marshal(struct {
		Type    string  `json:"type"`
		Title   string  `json:"title"`
		Detail  string  `json:"detail"`
		TraceID *string `json:"traceID,omitempty"`
	}{
		Type:    p.typ,
		Title:   p.title,
		Detail:  p.detail,
		TraceID: traceID,
	})
}

//ResponseCode returns the HTTP response code to be used when returning a specific problem
func (p *ProblemDetailsImpl) ResponseCode() int {

	if p.code != 0 {
		return p.code
	}

	return http.StatusBadRequest
}

//WriteResponse writes the contents of this instance to a http.ResponseWriter
func (p *ProblemDetailsImpl) WriteResponse(w http.ResponseWriter) {
	w.Header().Add("Content-Type", p.ContentType())
	w.Header().Add("Content-Language", "en")
	w.WriteHeader(p.ResponseCode())

	pdbytes, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		w.Write(pdbytes)
	}
}
