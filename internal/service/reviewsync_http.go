package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationReviewSyncHealthCheck    = "/reviewsync.v1.ReviewSync/HealthCheck"
	OperationReviewSyncOnboard        = "/reviewsync.v1.ReviewSync/Onboard"
	OperationReviewSyncResolve        = "/reviewsync.v1.ReviewSync/Resolve"
	OperationReviewSyncIngest         = "/reviewsync.v1.ReviewSync/Ingest"
	OperationReviewSyncGetRating      = "/reviewsync.v1.ReviewSync/GetRating"
	OperationReviewSyncAnnotate       = "/reviewsync.v1.ReviewSync/Annotate"
	OperationReviewSyncSubmitFeedback = "/reviewsync.v1.ReviewSync/SubmitFeedback"
)

// ReviewSyncHTTPServer is the handler surface mounted by RegisterReviewSyncHTTPServer.
type ReviewSyncHTTPServer interface {
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckReply, error)
	Onboard(context.Context, *OnboardRequest) (*OnboardReply, error)
	Resolve(context.Context, *ResolveRequest) (*ResolveReply, error)
	Ingest(context.Context, *IngestRequest) (*IngestReply, error)
	GetRating(context.Context, *GetRatingRequest) (*GetRatingReply, error)
	Annotate(context.Context, *AnnotateRequest) (*AnnotateReply, error)
	SubmitFeedback(context.Context, *FeedbackRequest) (*FeedbackReply, error)
}

func RegisterReviewSyncHTTPServer(s *http.Server, srv ReviewSyncHTTPServer) {
	r := s.Route("/")
	r.GET("/healthz", _ReviewSync_HealthCheck0_HTTP_Handler(srv))
	r.POST("/v1/places/onboard", _ReviewSync_Onboard0_HTTP_Handler(srv))
	r.POST("/v1/places/resolve", _ReviewSync_Resolve0_HTTP_Handler(srv))
	r.POST("/v1/ingest", _ReviewSync_Ingest0_HTTP_Handler(srv))
	r.GET("/v1/places/{place_id}/rating", _ReviewSync_GetRating0_HTTP_Handler(srv))
	r.POST("/v1/places/{place_id}/annotate", _ReviewSync_Annotate0_HTTP_Handler(srv))
	r.POST("/v1/feedback", _ReviewSync_SubmitFeedback0_HTTP_Handler(srv))
}

func _ReviewSync_HealthCheck0_HTTP_Handler(srv ReviewSyncHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in HealthCheckRequest
		http.SetOperation(ctx, OperationReviewSyncHealthCheck)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.HealthCheck(ctx, req.(*HealthCheckRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _ReviewSync_Onboard0_HTTP_Handler(srv ReviewSyncHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in OnboardRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationReviewSyncOnboard)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Onboard(ctx, req.(*OnboardRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _ReviewSync_Resolve0_HTTP_Handler(srv ReviewSyncHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ResolveRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationReviewSyncResolve)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Resolve(ctx, req.(*ResolveRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _ReviewSync_Ingest0_HTTP_Handler(srv ReviewSyncHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in IngestRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationReviewSyncIngest)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Ingest(ctx, req.(*IngestRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _ReviewSync_GetRating0_HTTP_Handler(srv ReviewSyncHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetRatingRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationReviewSyncGetRating)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetRating(ctx, req.(*GetRatingRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _ReviewSync_Annotate0_HTTP_Handler(srv ReviewSyncHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in AnnotateRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationReviewSyncAnnotate)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Annotate(ctx, req.(*AnnotateRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _ReviewSync_SubmitFeedback0_HTTP_Handler(srv ReviewSyncHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in FeedbackRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationReviewSyncSubmitFeedback)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.SubmitFeedback(ctx, req.(*FeedbackRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
