package service

import (
	"fmt"
	"net/http"
	"strings"

	"reviewsync/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-playground/validator/v10"
)

const (
	reasonInvalidArgument = "INVALID_ARGUMENT"
	reasonNotResolved     = "PLACE_NOT_RESOLVED"
	reasonPlaceNotFound   = "PLACE_NOT_FOUND"
	reasonReviewNotFound  = "REVIEW_NOT_FOUND"
	reasonProviderTimeout = "PROVIDER_TIMEOUT"
	reasonProviderError   = "PROVIDER_ERROR"
	reasonInternal        = "INTERNAL"
)

// check validates a request DTO and converts failures to a 400.
func (s *ReviewSyncService) check(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.BadRequest(reasonInvalidArgument, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fieldName(fe), fe.Tag()))
	}
	return errors.BadRequest(reasonInvalidArgument, strings.Join(msgs, "; "))
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

// toServiceError maps domain errors onto HTTP-facing kratos errors.
func (s *ReviewSyncService) toServiceError(err error) error {
	if se := new(errors.Error); errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, biz.ErrInvalidArgument):
		return errors.BadRequest(reasonInvalidArgument, err.Error())
	case errors.Is(err, biz.ErrResolutionMiss):
		return errors.NotFound(reasonNotResolved, err.Error())
	case errors.Is(err, biz.ErrPlaceNotFound):
		return errors.NotFound(reasonPlaceNotFound, err.Error())
	case errors.Is(err, biz.ErrReviewNotFound):
		return errors.NotFound(reasonReviewNotFound, err.Error())
	case errors.Is(err, biz.ErrProviderTimeout):
		return errors.New(http.StatusGatewayTimeout, reasonProviderTimeout, err.Error())
	case errors.Is(err, biz.ErrProviderError):
		return errors.New(http.StatusBadGateway, reasonProviderError, err.Error())
	}
	s.log.Errorf("unhandled error: %v", err)
	return errors.InternalServer(reasonInternal, "internal error")
}
