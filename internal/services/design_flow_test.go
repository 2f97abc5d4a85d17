// internal/services/design_flow_test.go
package services

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/craftkart/craftkart-backend/internal/config"
	"github.com/craftkart/craftkart-backend/internal/database"
	"github.com/craftkart/craftkart-backend/internal/models"
	"github.com/craftkart/craftkart-backend/internal/negotiation"
)

// The suite needs a real Postgres: row locks and the unique index on
// orders.design_request_id are part of what is under test. Set
// TEST_DATABASE_URL to run it.
type DesignFlowTestSuite struct {
	suite.Suite
	db             *gorm.DB
	cfg            *config.Config
	designService  *DesignService
	paymentService *PaymentService
	orderService   *OrderService
}

func TestDesignFlowTestSuite(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	suite.Run(t, new(DesignFlowTestSuite))
}

func (s *DesignFlowTestSuite) SetupSuite() {
	db, err := gorm.Open(postgres.Open(os.Getenv("TEST_DATABASE_URL")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.RunMigrations(db))

	s.db = db
	s.cfg = &config.Config{
		Payment: config.PaymentConfig{
			Currency:       "inr",
			RequireAdvance: true,
		},
	}

	s.designService = NewDesignService(db, nil)
	s.paymentService = NewPaymentService(db, s.cfg, nil)
	s.orderService = NewOrderService(db, s.cfg, nil)
}

func (s *DesignFlowTestSuite) newUser(userType models.UserType) *models.User {
	tag := uuid.New().String()[:8]
	user := &models.User{
		Username: fmt.Sprintf("u_%s", tag),
		Email:    fmt.Sprintf("u_%s@example.com", tag),
		UserType: userType,
		Status:   models.UserStatusActive,
	}
	require.NoError(s.T(), user.SetPassword("test-password-1"))
	require.NoError(s.T(), s.db.Create(user).Error)
	return user
}

func (s *DesignFlowTestSuite) submitRequest(buyerID uuid.UUID) *models.DesignRequest {
	record, err := s.designService.Submit(buyerID, &SubmitDesignRequest{
		DesignImageURL: "https://cdn.example.com/designs/lehenga.png",
		Description:    "Hand-embroidered lehenga from my sketch",
		Size:           "M",
		Quantity:       1,
	})
	require.NoError(s.T(), err)
	return record
}

// approvedRequest runs quote 1200 / counter 1000 / seller accept and returns
// the record in approved state with an agreed amount of 1000.
func (s *DesignFlowTestSuite) approvedRequest(buyer, seller *models.User) *models.DesignRequest {
	record := s.submitRequest(buyer.ID)

	_, err := s.designService.SubmitQuote(record.ID, seller.ID, &SubmitQuoteRequest{
		Amount: "1200.00", Message: "includes embroidery",
	})
	require.NoError(s.T(), err)

	_, err = s.designService.RespondToQuote(record.ID, buyer.ID, &RespondToQuoteRequest{
		Response: BuyerResponseCounterOffer, Amount: "1000.00", Message: "my budget",
	})
	require.NoError(s.T(), err)

	updated, err := s.designService.RespondToNegotiation(record.ID, seller.ID, &RespondToNegotiationRequest{
		Response: SellerResponseAccept,
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), negotiation.StatusApproved, updated.Status)
	return updated
}

func (s *DesignFlowTestSuite) TestNegotiatedPurchaseFlow() {
	buyer := s.newUser(models.UserTypeBuyer)
	seller := s.newUser(models.UserTypeSeller)

	record := s.approvedRequest(buyer, seller)

	// The buyer's counter is the agreed amount
	s.Require().NotNil(record.QuoteAmount)
	s.True(record.QuoteAmount.Equal(decimal.RequireFromString("1000.00")))

	// Advance payment
	paid, err := s.paymentService.RecordPayment(record.ID, &PaymentEvent{
		Amount: "1000.00", Method: "upi", ProviderReference: "pi_" + uuid.New().String()[:8],
	})
	s.Require().NoError(err)
	s.True(paid.Paid())
	s.True(paid.IsPriority, "full advance marks the request priority")

	// Conversion
	result, err := s.orderService.Convert(record.ID, seller.ID, models.UserTypeSeller)
	s.Require().NoError(err)
	s.False(result.AlreadyExisted)
	s.True(result.Order.Amount.Equal(decimal.RequireFromString("1000.00")))

	// Record is completed and permanently linked to the order
	final, err := s.designService.Get(record.ID, buyer.ID, models.UserTypeBuyer)
	s.Require().NoError(err)
	s.Equal(negotiation.StatusCompleted, final.Status)
	s.Require().NotNil(final.OrderID)
	s.Equal(result.Order.ID, *final.OrderID)

	// Replaying the ledger reproduces the cached state
	state, quote, err := s.designService.ReplayState(record.ID)
	s.Require().NoError(err)
	s.Equal(final.Status, state)
	s.Require().NotNil(quote)
	s.True(quote.Amount.Equal(*final.QuoteAmount))
}

func (s *DesignFlowTestSuite) TestChangeRequestIsTerminal() {
	buyer := s.newUser(models.UserTypeBuyer)
	seller := s.newUser(models.UserTypeSeller)
	record := s.submitRequest(buyer.ID)

	_, err := s.designService.SubmitQuote(record.ID, seller.ID, &SubmitQuoteRequest{Amount: "800"})
	s.Require().NoError(err)

	rejected, err := s.designService.RespondToQuote(record.ID, buyer.ID, &RespondToQuoteRequest{
		Response: BuyerResponseChangeRequest, Message: "please use a different base fabric",
	})
	s.Require().NoError(err)
	s.Equal(negotiation.StatusRejected, rejected.Status)

	// No resurrection: further quoting fails and the state stays rejected
	_, err = s.designService.SubmitQuote(record.ID, seller.ID, &SubmitQuoteRequest{Amount: "700"})
	s.ErrorIs(err, negotiation.ErrInvalidTransition)

	reloaded, err := s.designService.Get(record.ID, buyer.ID, models.UserTypeBuyer)
	s.Require().NoError(err)
	s.Equal(negotiation.StatusRejected, reloaded.Status)
}

func (s *DesignFlowTestSuite) TestNoOpCounterOffer() {
	buyer := s.newUser(models.UserTypeBuyer)
	seller := s.newUser(models.UserTypeSeller)
	record := s.submitRequest(buyer.ID)

	_, err := s.designService.SubmitQuote(record.ID, seller.ID, &SubmitQuoteRequest{Amount: "1200.00"})
	s.Require().NoError(err)

	_, err = s.designService.RespondToQuote(record.ID, buyer.ID, &RespondToQuoteRequest{
		Response: BuyerResponseCounterOffer, Amount: "1200.00",
	})
	s.ErrorIs(err, negotiation.ErrNoOpOffer)

	// Still quoted, no negotiation round consumed
	reloaded, err := s.designService.Get(record.ID, buyer.ID, models.UserTypeBuyer)
	s.Require().NoError(err)
	s.Equal(negotiation.StatusQuoted, reloaded.Status)
	s.Len(reloaded.NegotiationHistory, 1)
}

func (s *DesignFlowTestSuite) TestDuplicatePaymentIsNoOp() {
	buyer := s.newUser(models.UserTypeBuyer)
	seller := s.newUser(models.UserTypeSeller)
	record := s.approvedRequest(buyer, seller)

	ref := "pi_" + uuid.New().String()[:8]
	first, err := s.paymentService.RecordPayment(record.ID, &PaymentEvent{
		Amount: "400.00", Method: "upi", ProviderReference: ref,
	})
	s.Require().NoError(err)
	s.False(first.IsPriority, "partial advance is not priority")

	// Retry with the same reference: original payment stands untouched
	again, err := s.paymentService.RecordPayment(record.ID, &PaymentEvent{
		Amount: "400.00", Method: "upi", ProviderReference: ref,
	})
	s.ErrorIs(err, negotiation.ErrDuplicatePayment)
	s.Require().NotNil(again)
	s.True(again.AdvanceAmount.Equal(*first.AdvanceAmount))
	s.Equal(first.AdvanceReference, again.AdvanceReference)
	s.Equal(first.Version, again.Version)
}

func (s *DesignFlowTestSuite) TestConvertRequiresApprovalAndPayment() {
	buyer := s.newUser(models.UserTypeBuyer)
	seller := s.newUser(models.UserTypeSeller)
	record := s.submitRequest(buyer.ID)

	_, err := s.orderService.Convert(record.ID, seller.ID, models.UserTypeSeller)
	s.ErrorIs(err, negotiation.ErrNotApproved)

	record = s.approvedRequest(buyer, seller)
	_, err = s.orderService.Convert(record.ID, seller.ID, models.UserTypeSeller)
	s.ErrorIs(err, negotiation.ErrPaymentRequired)
}

func (s *DesignFlowTestSuite) TestBuyersCannotConvert() {
	buyer := s.newUser(models.UserTypeBuyer)
	seller := s.newUser(models.UserTypeSeller)
	stranger := s.newUser(models.UserTypeBuyer)
	record := s.approvedRequest(buyer, seller)

	_, err := s.paymentService.RecordPayment(record.ID, &PaymentEvent{
		Amount: "1000.00", Method: "upi", ProviderReference: "pi_" + uuid.New().String()[:8],
	})
	s.Require().NoError(err)

	// Neither the owning buyer nor an unrelated one may trigger conversion
	_, err = s.orderService.Convert(record.ID, buyer.ID, models.UserTypeBuyer)
	s.ErrorContains(err, "unauthorized")

	_, err = s.orderService.Convert(record.ID, stranger.ID, models.UserTypeBuyer)
	s.ErrorContains(err, "unauthorized")

	// A seller not assigned to the record is rejected too
	otherSeller := s.newUser(models.UserTypeSeller)
	_, err = s.orderService.Convert(record.ID, otherSeller.ID, models.UserTypeSeller)
	s.ErrorContains(err, "unauthorized")

	// The record is untouched and still convertible by the assigned seller
	result, err := s.orderService.Convert(record.ID, seller.ID, models.UserTypeSeller)
	s.Require().NoError(err)
	s.False(result.AlreadyExisted)
}

// Simulates the narrow window where another writer committed an order after
// the order_id check: the insert hits the unique index and the caller still
// gets the existing order back instead of an aborted-transaction error.
func (s *DesignFlowTestSuite) TestConversionRaceFallbackReturnsExistingOrder() {
	buyer := s.newUser(models.UserTypeBuyer)
	seller := s.newUser(models.UserTypeSeller)
	record := s.approvedRequest(buyer, seller)

	_, err := s.paymentService.RecordPayment(record.ID, &PaymentEvent{
		Amount: "1000.00", Method: "card", ProviderReference: "pi_" + uuid.New().String()[:8],
	})
	s.Require().NoError(err)

	racer := &models.Order{
		DesignRequestID: record.ID,
		BuyerID:         buyer.ID,
		SellerID:        &seller.ID,
		DesignImageURL:  record.DesignImageURL,
		Quantity:        record.Quantity,
		Size:            record.Size,
		Amount:          decimal.RequireFromString("1000.00"),
		Status:          models.OrderStatusProduction,
	}
	s.Require().NoError(s.db.Create(racer).Error)

	result, err := s.orderService.Convert(record.ID, seller.ID, models.UserTypeSeller)
	s.Require().NoError(err)
	s.True(result.AlreadyExisted)
	s.Equal(racer.ID, result.Order.ID)

	var count int64
	s.Require().NoError(s.db.Model(&models.Order{}).
		Where("design_request_id = ?", record.ID).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *DesignFlowTestSuite) TestConcurrentConversionCreatesOneOrder() {
	buyer := s.newUser(models.UserTypeBuyer)
	seller := s.newUser(models.UserTypeSeller)
	record := s.approvedRequest(buyer, seller)

	_, err := s.paymentService.RecordPayment(record.ID, &PaymentEvent{
		Amount: "1000.00", Method: "card", ProviderReference: "pi_" + uuid.New().String()[:8],
	})
	s.Require().NoError(err)

	const workers = 8
	results := make([]*ConversionResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.orderService.Convert(record.ID, seller.ID, models.UserTypeSeller)
		}(i)
	}
	wg.Wait()

	created := 0
	var orderID uuid.UUID
	for i := 0; i < workers; i++ {
		s.Require().NoError(errs[i])
		s.Require().NotNil(results[i].Order)
		if !results[i].AlreadyExisted {
			created++
		}
		if orderID == uuid.Nil {
			orderID = results[i].Order.ID
		}
		s.Equal(orderID, results[i].Order.ID, "every caller sees the same order")
	}
	s.Equal(1, created, "exactly one conversion wins")

	var count int64
	s.Require().NoError(s.db.Model(&models.Order{}).
		Where("design_request_id = ?", record.ID).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *DesignFlowTestSuite) TestFirstQuoteClaimsUnassignedRequest() {
	buyer := s.newUser(models.UserTypeBuyer)
	sellerA := s.newUser(models.UserTypeSeller)
	sellerB := s.newUser(models.UserTypeSeller)
	record := s.submitRequest(buyer.ID)

	quoted, err := s.designService.SubmitQuote(record.ID, sellerA.ID, &SubmitQuoteRequest{Amount: "500"})
	s.Require().NoError(err)
	s.Require().NotNil(quoted.SellerID)
	s.Equal(sellerA.ID, *quoted.SellerID)

	// A second seller cannot hijack the assigned request
	_, err = s.designService.SubmitQuote(record.ID, sellerB.ID, &SubmitQuoteRequest{Amount: "450"})
	s.Error(err)
}
