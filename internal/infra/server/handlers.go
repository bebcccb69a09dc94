package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/dakino/household-service/internal/core/cloud"
	"github.com/dakino/household-service/internal/core/households"
	"github.com/dakino/household-service/internal/core/inventory"
	"github.com/dakino/household-service/internal/core/matching"
	"github.com/dakino/household-service/internal/core/products"
	"github.com/dakino/household-service/internal/core/purchases"
	"github.com/dakino/household-service/internal/core/tickets"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type HouseholdService interface {
	CreateHousehold(ctx context.Context, req households.CreateHouseholdRequest) (*households.Household, error)
	GetUserHouseholds(ctx context.Context, userID uuid.UUID) ([]*households.Household, error)
	GetHousehold(ctx context.Context, householdID uuid.UUID) (*households.HouseholdWithMembers, error)
	JoinByInviteCode(ctx context.Context, code string, userID uuid.UUID) (*households.Household, error)
	RegenerateInviteCode(ctx context.Context, householdID, requestedBy uuid.UUID) (string, error)
	RemoveMember(ctx context.Context, householdID, userID, requestedBy uuid.UUID) error
	IsMember(ctx context.Context, householdID, userID uuid.UUID) (bool, error)
}

type ProductService interface {
	CreateProduct(ctx context.Context, req products.CreateProductRequest) (*products.Product, error)
	GetProduct(ctx context.Context, householdID, productID uuid.UUID) (*products.Product, error)
	UpdateProduct(ctx context.Context, req products.UpdateProductRequest) (*products.Product, error)
	DeleteProduct(ctx context.Context, householdID, productID uuid.UUID) error
	ListProducts(ctx context.Context, householdID uuid.UUID) ([]*products.Product, error)
	SearchProducts(ctx context.Context, householdID uuid.UUID, searchTerm string) ([]*products.Product, error)
}

type TicketService interface {
	Scan(ctx context.Context, req tickets.ScanRequest) (*tickets.ScanResult, error)
	Analyze(ctx context.Context, data []byte, contentType string) (*matching.Ticket, error)
	Match(ctx context.Context, householdID uuid.UUID, ticket matching.Ticket) (matching.MatchedTicket, error)
}

type PurchaseService interface {
	CommitTicket(ctx context.Context, req purchases.CommitRequest) (*purchases.CommitResult, error)
	CreatePurchase(ctx context.Context, req purchases.CreatePurchaseRequest) (*purchases.Purchase, error)
	ListPurchases(ctx context.Context, householdID uuid.UUID, from, to time.Time) ([]*purchases.Purchase, error)
	DeletePurchase(ctx context.Context, householdID, purchaseID uuid.UUID) error
	MonthlySpending(ctx context.Context, householdID uuid.UUID, year int) ([]purchases.MonthlyTotal, error)
}

type InventoryService interface {
	ListInventory(ctx context.Context, householdID uuid.UUID) ([]*inventory.InventoryItem, error)
	Adjust(ctx context.Context, householdID, productID uuid.UUID, delta decimal.Decimal) (*inventory.InventoryItem, error)
	Set(ctx context.Context, householdID, productID uuid.UUID, quantity decimal.Decimal) (*inventory.InventoryItem, error)
}

// ArchiveService browses the archived ticket photos
type ArchiveService interface {
	ListHouseholdTickets(ctx context.Context, householdID uuid.UUID, maxResults int) ([]*cloud.FileInfo, error)
	GetTemporaryFileURL(ctx context.Context, fileID string, expiration time.Duration) (string, error)
	GetFileInfo(ctx context.Context, fileID string) (*cloud.FileInfo, error)
	DeleteFile(ctx context.Context, fileID string) error
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services are the domain services the HTTP layer exposes
type Services struct {
	Households HouseholdService
	Products   ProductService
	Tickets    TicketService
	Purchases  PurchaseService
	Inventory  InventoryService
	Archive    ArchiveService
	Health     HealthChecker
}

type handlers struct {
	Services
	logger *slog.Logger
}

const dateLayout = "2006-01-02"
