// Package openapi checks HTTP exchanges against the service's OpenAPI
// document.
package openapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

type Validator struct {
	doc    *openapi3.T
	router routers.Router
}

// Parse loads raw as an OpenAPI 3 document and rejects invalid documents
func Parse(raw []byte) (*Validator, error) {
	doc, err := openapi3.NewLoader().LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: parse: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapi: invalid document: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi: build router: %w", err)
	}
	return &Validator{doc: doc, router: router}, nil
}

func (v *Validator) match(req *http.Request) (*openapi3filter.RequestValidationInput, error) {
	route, params, err := v.router.FindRoute(req)
	if err != nil {
		return nil, fmt.Errorf("openapi: no operation for %s %s: %w", req.Method, req.URL.Path, err)
	}
	return &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options:    &openapi3filter.Options{MultiError: true},
	}, nil
}

// ValidateRequest checks parameters, headers and body of req
func (v *Validator) ValidateRequest(req *http.Request) error {
	in, err := v.match(req)
	if err != nil {
		return err
	}
	if err := openapi3filter.ValidateRequest(req.Context(), in); err != nil {
		return fmt.Errorf("openapi: request %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// ValidateResponse checks resp as the answer to req. resp.Body stays
// readable afterwards.
func (v *Validator) ValidateResponse(req *http.Request, resp *http.Response) error {
	in, err := v.match(req)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openapi: read response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	out := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: in,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Options:                &openapi3filter.Options{MultiError: true, IncludeResponseStatus: true},
	}
	out.SetBodyBytes(body)
	if err := openapi3filter.ValidateResponse(req.Context(), out); err != nil {
		return fmt.Errorf("openapi: response %d to %s %s: %w", resp.StatusCode, req.Method, req.URL.Path, err)
	}
	return nil
}

// Paths lists the document's path templates in order
func (v *Validator) Paths() []string {
	if v.doc.Paths == nil {
		return nil
	}
	paths := v.doc.Paths.InMatchingOrder()
	sort.Strings(paths)
	return paths
}
