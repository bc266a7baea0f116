package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/flowloom-cli/internal/dataset"
	"github.com/KaramelBytes/flowloom-cli/internal/flow"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// flowRequest is the column selection posted with an upload.
type flowRequest struct {
	Mode       string   `form:"mode" validate:"omitempty,oneof=multi-stage multistage multi stages single-split split single"`
	Stages     []string `form:"stages" validate:"max=32,dive,required,max=256"`
	Measure    string   `form:"measure" validate:"max=256"`
	RootLabel  string   `form:"root_label" validate:"max=256"`
	Kind       string   `form:"kind" validate:"omitempty,oneof=commentary email both"`
	Title      string   `form:"title" validate:"max=256"`
	SheetName  string   `form:"sheet_name" validate:"max=256"`
	SheetIndex int      `form:"sheet_index" validate:"min=0,max=1024"`
	Delimiter  string   `form:"delimiter" validate:"omitempty,max=4"`
}

// requestError carries the HTTP status for a failed request.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

// parseUpload reads the multipart form, the dataset file, and the selection.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*dataset.Table, flowRequest, error) {
	var req flowRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		if tooLarge(err) {
			return nil, req, &requestError{status: http.StatusRequestEntityTooLarge, err: fmt.Errorf("upload exceeds %d bytes", s.cfg.MaxUploadBytes)}
		}
		return nil, req, badRequest("parse form: %v", err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	req = readForm(r)
	if err := validate.Struct(req); err != nil {
		return nil, req, &requestError{status: http.StatusBadRequest, err: validationMessage(err)}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, req, badRequest("missing dataset upload in field 'file'")
	}
	defer file.Close()
	if !dataset.Supported(header.Filename) {
		return nil, req, &requestError{status: http.StatusUnsupportedMediaType, err: fmt.Errorf("%w: %s", dataset.ErrUnsupported, header.Filename)}
	}

	opt := dataset.DefaultOptions()
	opt.SheetName = req.SheetName
	if req.SheetIndex > 0 {
		opt.SheetIndex = req.SheetIndex
	}
	if req.Delimiter != "" {
		d := req.Delimiter
		if d == `\t` || strings.EqualFold(d, "tab") {
			d = "\t"
		}
		if utf8.RuneCountInString(d) != 1 {
			return nil, req, badRequest("delimiter must be a single character")
		}
		opt.Delimiter, _ = utf8.DecodeRuneInString(d)
	}
	t, err := dataset.LoadReader(header.Filename, file, opt)
	if err != nil {
		if tooLarge(err) {
			return nil, req, &requestError{status: http.StatusRequestEntityTooLarge, err: err}
		}
		return nil, req, badRequest("read dataset: %v", err)
	}
	return t, req, nil
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func readForm(r *http.Request) flowRequest {
	get := func(k string) string { return strings.TrimSpace(r.FormValue(k)) }
	req := flowRequest{
		Mode:      strings.ToLower(get("mode")),
		Measure:   get("measure"),
		RootLabel: get("root_label"),
		Kind:      strings.ToLower(get("kind")),
		Title:     get("title"),
		SheetName: get("sheet_name"),
		Delimiter: r.FormValue("delimiter"),
	}
	if n, err := strconv.Atoi(get("sheet_index")); err == nil {
		req.SheetIndex = n
	}
	for _, v := range r.Form["stages"] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				req.Stages = append(req.Stages, p)
			}
		}
	}
	if c := get("category"); c != "" && len(req.Stages) == 0 {
		req.Stages = []string{c}
	}
	return req
}

// spec converts the request into a builder selection.
func (s *Server) spec(req flowRequest) (flow.Spec, error) {
	mode, err := flow.ParseMode(req.Mode)
	if err != nil {
		return flow.Spec{}, err
	}
	root := req.RootLabel
	if root == "" {
		root = s.cfg.RootLabel
	}
	return flow.Spec{Mode: mode, Stages: req.Stages, Measure: req.Measure, RootLabel: root}, nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s must not be empty", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds maximum %s", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s is below minimum %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
