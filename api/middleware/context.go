package middleware

import "context"

type contextKey string

const (
	ctxFarmerID contextKey = "farmer_id"
	ctxRole     contextKey = "actor_role"
	ctxFarmID   contextKey = "farm_id"
)

func FarmerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxFarmerID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func FarmIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxFarmID).(string); ok {
		return v
	}
	return ""
}

// WithFarmerID injects the farmer identifier into the context.
func WithFarmerID(ctx context.Context, farmerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxFarmerID, farmerID)
}

// WithFarmID injects the farm identifier into the context for downstream handlers.
func WithFarmID(ctx context.Context, farmID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxFarmID, farmID)
}
