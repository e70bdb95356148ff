package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wopay/engine/pkg/domain/apperror"
	payment_entities "github.com/wopay/engine/pkg/domain/payment/entities"
	payment_out "github.com/wopay/engine/pkg/domain/payment/ports/out"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
	"github.com/wopay/engine/pkg/infra/kafka"
	"github.com/wopay/engine/pkg/infra/metrics"
)

const (
	paymentsCollection          = "payments"
	paymentAddressesCollection  = "payment_addresses"
	observedTransfersCollection = "observed_transfers"
	webhookAttemptsCollection   = "webhook_attempts"
	sweepTransactionsCollection = "sweep_transactions"
	walletConfigCollection      = "wallet_config"
	followerCursorCollection    = "follower_cursor"
)

const walletConfigSingletonID = "singleton"
const followerCursorSingletonID = "singleton"

// statusBroadcaster is the operator-dashboard notification surface a
// PaymentStore can optionally push to after a successful transition.
// Kept as a small interface here (rather than importing
// pkg/infra/websocket directly) so the store has no hard dependency on
// the WebSocket hub existing at all.
type statusBroadcaster interface {
	BroadcastPaymentStatusChanged(merchantID uuid.UUID, payload interface{})
}

// PaymentStore is the single writer coordinator for every
// payment-lifecycle document. Uses a StartSession/WithTransaction
// pattern for the one operation that needs cross-document atomicity
// (create_payment inserts a payment and its address together), and
// creates its indexes from its constructor.
type PaymentStore struct {
	db          *mongo.Database
	broadcaster statusBroadcaster
	events      *kafka.EventPublisher
}

func NewPaymentStore(db *mongo.Database) *PaymentStore {
	s := &PaymentStore{db: db}
	s.ensureIndexes()
	return s
}

// WithBroadcaster attaches an operator-dashboard broadcaster; nil is
// safe and simply disables notification.
func (s *PaymentStore) WithBroadcaster(b statusBroadcaster) *PaymentStore {
	s.broadcaster = b
	return s
}

// WithEventPublisher attaches the durable Kafka event-feed sink; a
// publisher built from a nil *kafka.Client is safe and simply disables
// publishing, so this is never nil-checked before use.
func (s *PaymentStore) WithEventPublisher(p *kafka.EventPublisher) *PaymentStore {
	s.events = p
	return s
}

func (s *PaymentStore) ensureIndexes() {
	ctx := context.Background()

	payments := s.db.Collection(paymentsCollection)
	if _, err := payments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "merchant_id", Value: 1}, {Key: "order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}); err != nil {
		slog.Error("failed to create payment indexes", "error", err)
	}

	addresses := s.db.Collection(paymentAddressesCollection)
	if _, err := addresses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "address", Value: 1}, {Key: "currency", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "derivation_index", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "swept", Value: 1}}},
	}); err != nil {
		slog.Error("failed to create payment address indexes", "error", err)
	}

	transfers := s.db.Collection(observedTransfersCollection)
	if _, err := transfers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "to_address", Value: 1}, {Key: "currency", Value: 1}}},
		{Keys: bson.D{{Key: "payment_id", Value: 1}}},
	}); err != nil {
		slog.Error("failed to create observed transfer indexes", "error", err)
	}

	webhooks := s.db.Collection(webhookAttemptsCollection)
	if _, err := webhooks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "payment_id", Value: 1}, {Key: "attempt_index", Value: 1}}},
		{Keys: bson.D{{Key: "success", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
	}); err != nil {
		slog.Error("failed to create webhook attempt indexes", "error", err)
	}

	sweeps := s.db.Collection(sweepTransactionsCollection)
	if _, err := sweeps.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "from_address", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}); err != nil {
		slog.Error("failed to create sweep transaction indexes", "error", err)
	}
}

// --- payment document shape ---

type paymentDoc struct {
	ID               uuid.UUID  `bson:"_id"`
	MerchantID       uuid.UUID  `bson:"merchant_id"`
	OrderID          string     `bson:"order_id"`
	ExpectedAmount   string     `bson:"expected_amount"`
	Currency         string     `bson:"currency"`
	ReceivingAddress string     `bson:"receiving_address"`
	Status           string     `bson:"status"`
	TransactionHash  *string    `bson:"transaction_hash,omitempty"`
	Confirmations    int        `bson:"confirmations"`
	ExpiresAt        time.Time  `bson:"expires_at"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func (d paymentDoc) toEntity() (*payment_entities.Payment, error) {
	amount, err := payment_vo.NewAmount(d.ExpectedAmount)
	if err != nil {
		return nil, err
	}
	currency, err := payment_vo.ParseCurrency(d.Currency)
	if err != nil {
		return nil, err
	}
	addr, err := payment_vo.NewEVMAddress(d.ReceivingAddress)
	if err != nil {
		return nil, err
	}
	return &payment_entities.Payment{
		ID:               d.ID,
		MerchantID:       d.MerchantID,
		OrderID:          d.OrderID,
		ExpectedAmount:   amount,
		Currency:         currency,
		ReceivingAddress: addr,
		Status:           payment_entities.PaymentStatus(d.Status),
		TransactionHash:  d.TransactionHash,
		Confirmations:    d.Confirmations,
		ExpiresAt:        d.ExpiresAt,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

func fromPaymentEntity(p payment_entities.Payment) paymentDoc {
	return paymentDoc{
		ID:               p.ID,
		MerchantID:       p.MerchantID,
		OrderID:          p.OrderID,
		ExpectedAmount:   p.ExpectedAmount.String(),
		Currency:         string(p.Currency),
		ReceivingAddress: p.ReceivingAddress.String(),
		Status:           string(p.Status),
		TransactionHash:  p.TransactionHash,
		Confirmations:    p.Confirmations,
		ExpiresAt:        p.ExpiresAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

type paymentAddressDoc struct {
	PaymentID       uuid.UUID `bson:"payment_id"`
	DerivationIndex uint64    `bson:"derivation_index"`
	Address         string    `bson:"address"`
	Currency        string    `bson:"currency"`
	EncryptedKey    []byte    `bson:"encrypted_key"`
	Swept           bool      `bson:"swept"`
}

func (d paymentAddressDoc) toEntity() (*payment_entities.PaymentAddress, error) {
	addr, err := payment_vo.NewEVMAddress(d.Address)
	if err != nil {
		return nil, err
	}
	currency, err := payment_vo.ParseCurrency(d.Currency)
	if err != nil {
		return nil, err
	}
	return &payment_entities.PaymentAddress{
		PaymentID:       d.PaymentID,
		DerivationIndex: d.DerivationIndex,
		Address:         addr,
		Currency:        currency,
		EncryptedPrivKey: d.EncryptedKey,
		Swept:           d.Swept,
	}, nil
}

// CreatePayment allocates a receiving address and inserts the payment
// and address documents in a single transaction so neither is ever
// observed without the other.
func (s *PaymentStore) CreatePayment(ctx context.Context, params payment_out.CreatePaymentParams, deriver payment_out.KeyDeriver) (*payment_entities.Payment, *payment_entities.PaymentAddress, error) {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return nil, nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	type result struct {
		payment *payment_entities.Payment
		address *payment_entities.PaymentAddress
	}

	res, err := session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		index, err := s.nextDerivationIndex(sessCtx)
		if err != nil {
			return nil, err
		}

		addr, encryptedKey, err := deriver.DeriveAt(sessCtx, index)
		if err != nil {
			return nil, fmt.Errorf("%w: derive address: %v", apperror.ErrStore, err)
		}

		now := time.Now()
		payment := payment_entities.Payment{
			ID:               uuid.New(),
			MerchantID:       params.MerchantID,
			OrderID:          params.OrderID,
			ExpectedAmount:   params.Amount,
			Currency:         params.Currency,
			ReceivingAddress: addr,
			Status:           payment_entities.PaymentStatusPending,
			ExpiresAt:        params.ExpiresAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		paymentAddress := payment_entities.PaymentAddress{
			PaymentID:        payment.ID,
			DerivationIndex:  index,
			Address:          addr,
			Currency:         params.Currency,
			EncryptedPrivKey: encryptedKey,
			Swept:            false,
		}

		if _, err := s.db.Collection(paymentsCollection).InsertOne(sessCtx, fromPaymentEntity(payment)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, apperror.ErrDuplicateOrder
			}
			return nil, fmt.Errorf("%w: insert payment: %v", apperror.ErrStore, err)
		}

		if _, err := s.db.Collection(paymentAddressesCollection).InsertOne(sessCtx, paymentAddressDoc{
			PaymentID:       paymentAddress.PaymentID,
			DerivationIndex: paymentAddress.DerivationIndex,
			Address:         paymentAddress.Address.String(),
			Currency:        string(paymentAddress.Currency),
			EncryptedKey:    paymentAddress.EncryptedPrivKey,
			Swept:           paymentAddress.Swept,
		}); err != nil {
			return nil, fmt.Errorf("%w: insert payment address: %v", apperror.ErrStore, err)
		}

		return result{payment: &payment, address: &paymentAddress}, nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrDuplicateOrder) {
			return nil, nil, apperror.ErrDuplicateOrder
		}
		return nil, nil, err
	}

	r := res.(result)
	return r.payment, r.address, nil
}

// nextDerivationIndex returns one past the highest derivation index in
// use. Reading the max rather than counting documents keeps concurrent
// CreatePayment calls from computing the same next index — a later
// writer either sees the earlier writer's row and derives past it, or
// loses the unique-index race and the caller's transaction retries.
func (s *PaymentStore) nextDerivationIndex(ctx context.Context) (uint64, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "derivation_index", Value: -1}})
	var doc paymentAddressDoc
	err := s.db.Collection(paymentAddressesCollection).FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.DerivationIndex + 1, nil
}

func (s *PaymentStore) GetPayment(ctx context.Context, id uuid.UUID) (*payment_entities.Payment, error) {
	var doc paymentDoc
	err := s.db.Collection(paymentsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return doc.toEntity()
}

func (s *PaymentStore) ListPayments(ctx context.Context, filter payment_out.PaymentFilter, page payment_out.Page) ([]payment_entities.Payment, error) {
	query := bson.M{}
	if filter.MerchantID != nil {
		query["merchant_id"] = *filter.MerchantID
	}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit)).SetSkip(int64(page.Skip))
	}

	cursor, err := s.db.Collection(paymentsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	defer cursor.Close(ctx)

	var docs []paymentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}

	payments := make([]payment_entities.Payment, 0, len(docs))
	for _, d := range docs {
		p, err := d.toEntity()
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, nil
}

func (s *PaymentStore) ByReceivingAddress(ctx context.Context, addr payment_vo.EVMAddress, currency payment_vo.Currency) (*payment_entities.Payment, error) {
	nonTerminal := []string{
		string(payment_entities.PaymentStatusPending),
		string(payment_entities.PaymentStatusConfirmed),
	}
	var doc paymentDoc
	err := s.db.Collection(paymentsCollection).FindOne(ctx, bson.M{
		"receiving_address": addr.String(),
		"currency":          string(currency),
		"status":            bson.M{"$in": nonTerminal},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return doc.toEntity()
}

func (s *PaymentStore) ListPaymentsByStatus(ctx context.Context, status payment_entities.PaymentStatus) ([]payment_entities.Payment, error) {
	filter := payment_entities.PaymentStatus(status)
	return s.ListPayments(ctx, payment_out.PaymentFilter{Status: &filter}, payment_out.Page{})
}

// TransitionPayment performs the CAS operation underpinning the whole
// state machine: it only succeeds while the document's current status
// still equals expectedPrev.
func (s *PaymentStore) TransitionPayment(ctx context.Context, id uuid.UUID, expectedPrev, newStatus payment_entities.PaymentStatus, fields payment_out.TransitionFields) (*payment_entities.Payment, error) {
	set := bson.M{
		"status":     string(newStatus),
		"updated_at": time.Now(),
	}
	if fields.TransactionHash != nil {
		set["transaction_hash"] = *fields.TransactionHash
	}
	if fields.Confirmations != nil {
		set["confirmations"] = *fields.Confirmations
	}

	update := bson.M{"$set": set}
	if newStatus == payment_entities.PaymentStatusFailed && fields.TransactionHash == nil {
		// A failed payment no longer has a bound transaction.
		update["$unset"] = bson.M{"transaction_hash": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc paymentDoc
	err := s.db.Collection(paymentsCollection).FindOneAndUpdate(ctx, bson.M{
		"_id":    id,
		"status": string(expectedPrev),
	}, update, opts).Decode(&doc)

	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the payment doesn't exist, or its status has already
		// moved on — the CAS lost the race.
		return nil, apperror.ErrStaleState
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	entity, err := doc.toEntity()
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(expectedPrev), string(newStatus))

	if s.broadcaster != nil {
		s.broadcaster.BroadcastPaymentStatusChanged(entity.MerchantID, entity)
	}
	if s.events != nil {
		if err := s.events.PublishPaymentStatusChanged(ctx, &kafka.PaymentStatusChangedEvent{
			PaymentID:  entity.ID,
			MerchantID: entity.MerchantID,
			FromStatus: string(expectedPrev),
			ToStatus:   string(newStatus),
			Currency:   string(entity.Currency),
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish payment status changed event", "payment_id", entity.ID, "err", err)
		}
	}
	return entity, nil
}

// --- observed transfers ---

type observedTransferDoc struct {
	TxHash        string    `bson:"_id"`
	BlockNumber   uint64    `bson:"block_number"`
	TxIndex       uint      `bson:"tx_index"`
	FromAddress   string    `bson:"from_address"`
	ToAddress     string    `bson:"to_address"`
	Amount        string    `bson:"amount"`
	GasFee        string    `bson:"gas_fee"`
	Currency      string    `bson:"currency"`
	Confirmations int       `bson:"confirmations"`
	Status        string    `bson:"status"`
	PaymentID     *uuid.UUID `bson:"payment_id,omitempty"`
	ObservedAt    time.Time `bson:"observed_at"`
}

func fromTransferEntity(t payment_entities.ObservedTransfer) observedTransferDoc {
	gasFee := t.GasFee.String()
	return observedTransferDoc{
		TxHash:        t.TransactionHash,
		BlockNumber:   t.BlockNumber,
		TxIndex:       t.TxIndex,
		FromAddress:   t.FromAddress.String(),
		ToAddress:     t.ToAddress.String(),
		Amount:        t.Amount.String(),
		GasFee:        gasFee,
		Currency:      string(t.Currency),
		Confirmations: t.Confirmations,
		Status:        string(t.Status),
		PaymentID:     t.PaymentID,
		ObservedAt:    t.ObservedAt,
	}
}

func (d observedTransferDoc) toEntity() (*payment_entities.ObservedTransfer, error) {
	amount, err := payment_vo.NewAmount(d.Amount)
	if err != nil {
		return nil, err
	}
	gasFee := payment_vo.Zero()
	if d.GasFee != "" {
		if gasFee, err = payment_vo.NewAmount(d.GasFee); err != nil {
			return nil, err
		}
	}
	currency, err := payment_vo.ParseCurrency(d.Currency)
	if err != nil {
		return nil, err
	}
	from, err := payment_vo.NewEVMAddress(d.FromAddress)
	if err != nil {
		return nil, err
	}
	to, err := payment_vo.NewEVMAddress(d.ToAddress)
	if err != nil {
		return nil, err
	}
	return &payment_entities.ObservedTransfer{
		TransactionHash: d.TxHash,
		BlockNumber:     d.BlockNumber,
		TxIndex:         d.TxIndex,
		FromAddress:     from,
		ToAddress:       to,
		Amount:          amount,
		GasFee:          gasFee,
		Currency:        currency,
		Confirmations:   d.Confirmations,
		Status:          payment_entities.TransferStatus(d.Status),
		PaymentID:       d.PaymentID,
		ObservedAt:      d.ObservedAt,
	}, nil
}

func (s *PaymentStore) RecordObservedTransfer(ctx context.Context, t payment_entities.ObservedTransfer) (*payment_entities.ObservedTransfer, error) {
	doc := fromTransferEntity(t)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(true)

	var result observedTransferDoc
	err := s.db.Collection(observedTransfersCollection).FindOneAndUpdate(ctx, bson.M{"_id": doc.TxHash}, bson.M{
		"$setOnInsert": doc,
	}, opts).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return result.toEntity()
}

func (s *PaymentStore) GetObservedTransfer(ctx context.Context, txHash string) (*payment_entities.ObservedTransfer, error) {
	var doc observedTransferDoc
	err := s.db.Collection(observedTransfersCollection).FindOne(ctx, bson.M{"_id": txHash}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return doc.toEntity()
}

func (s *PaymentStore) BindTransferToPayment(ctx context.Context, txHash string, paymentID uuid.UUID) error {
	res, err := s.db.Collection(observedTransfersCollection).UpdateOne(ctx, bson.M{"_id": txHash}, bson.M{
		"$set": bson.M{"payment_id": paymentID, "status": string(payment_entities.TransferStatusConfirmed)},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	if res.MatchedCount == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// --- webhook attempts ---

type webhookAttemptDoc struct {
	ID             uuid.UUID `bson:"_id"`
	PaymentID      uuid.UUID `bson:"payment_id"`
	TargetURL      string    `bson:"target_url"`
	Payload        []byte    `bson:"payload"`
	AttemptIndex   int       `bson:"attempt_index"`
	ResponseStatus int       `bson:"response_status"`
	ResponseBody   string    `bson:"response_body"`
	Success        bool      `bson:"success"`
	NextAttemptAt  time.Time `bson:"next_attempt_at"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (d webhookAttemptDoc) toEntity() payment_entities.WebhookAttempt {
	return payment_entities.WebhookAttempt{
		ID:             d.ID,
		PaymentID:      d.PaymentID,
		TargetURL:      d.TargetURL,
		Payload:        d.Payload,
		AttemptIndex:   d.AttemptIndex,
		ResponseStatus: d.ResponseStatus,
		ResponseBody:   d.ResponseBody,
		Success:        d.Success,
		CreatedAt:      d.CreatedAt,
	}
}

// retryDelay returns how long to wait before the given attempt index is
// eligible, per the dispatcher's fixed schedule (5s/15s/45s/135s/405s).
// Index 0 (the first attempt) is immediately eligible.
func retryDelay(attemptIndex int) time.Duration {
	schedule := []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second, 135 * time.Second, 405 * time.Second}
	if attemptIndex <= 0 || attemptIndex > len(schedule) {
		return 0
	}
	return schedule[attemptIndex-1]
}

func (s *PaymentStore) EnqueueWebhook(ctx context.Context, paymentID uuid.UUID, targetURL string, payload []byte, attemptIndex int) (*payment_entities.WebhookAttempt, error) {
	doc := webhookAttemptDoc{
		ID:            uuid.New(),
		PaymentID:     paymentID,
		TargetURL:     targetURL,
		Payload:       payload,
		AttemptIndex:  attemptIndex,
		Success:       false,
		NextAttemptAt: time.Now().Add(retryDelay(attemptIndex)),
		CreatedAt:     time.Now(),
	}
	if _, err := s.db.Collection(webhookAttemptsCollection).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	entity := doc.toEntity()
	return &entity, nil
}

func (s *PaymentStore) MarkWebhookResult(ctx context.Context, id uuid.UUID, status int, body string, success bool) error {
	_, err := s.db.Collection(webhookAttemptsCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"response_status": status, "response_body": body, "success": success},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return nil
}

func (s *PaymentStore) PendingWebhookAttempts(ctx context.Context, limit int) ([]payment_entities.WebhookAttempt, error) {
	cursor, err := s.db.Collection(webhookAttemptsCollection).Find(ctx, bson.M{
		"success":         false,
		"next_attempt_at": bson.M{"$lte": time.Now()},
	}, options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "payment_id", Value: 1}, {Key: "attempt_index", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	defer cursor.Close(ctx)

	var docs []webhookAttemptDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	out := make([]payment_entities.WebhookAttempt, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toEntity())
	}
	return out, nil
}

// --- payment addresses ---

func (s *PaymentStore) OpenPaymentAddresses(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	openPayments, err := s.ListPayments(ctx, payment_out.PaymentFilter{}, payment_out.Page{})
	if err != nil {
		return nil, err
	}

	openIDs := make([]uuid.UUID, 0, len(openPayments))
	for _, p := range openPayments {
		if !p.Status.IsTerminal() {
			openIDs = append(openIDs, p.ID)
		}
	}
	if len(openIDs) == 0 {
		return nil, nil
	}

	cursor, err := s.db.Collection(paymentAddressesCollection).Find(ctx, bson.M{"payment_id": bson.M{"$in": openIDs}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	defer cursor.Close(ctx)

	var docs []paymentAddressDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	out := make([]payment_entities.PaymentAddress, 0, len(docs))
	for _, d := range docs {
		a, err := d.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *PaymentStore) GetPaymentAddress(ctx context.Context, paymentID uuid.UUID) (*payment_entities.PaymentAddress, error) {
	var doc paymentAddressDoc
	err := s.db.Collection(paymentAddressesCollection).FindOne(ctx, bson.M{"payment_id": paymentID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return doc.toEntity()
}

func (s *PaymentStore) AddressesReadyToSweep(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	completed, err := s.ListPayments(ctx, payment_out.PaymentFilter{Status: statusPtr(payment_entities.PaymentStatusCompleted)}, payment_out.Page{})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(completed))
	for _, p := range completed {
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := s.db.Collection(paymentAddressesCollection).Find(ctx, bson.M{
		"payment_id": bson.M{"$in": ids},
		"swept":      false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	defer cursor.Close(ctx)

	var docs []paymentAddressDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	out := make([]payment_entities.PaymentAddress, 0, len(docs))
	for _, d := range docs {
		a, err := d.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *PaymentStore) AddressesPendingRecovery(ctx context.Context) ([]payment_entities.PaymentAddress, error) {
	cursor, err := s.db.Collection(paymentAddressesCollection).Find(ctx, bson.M{"swept": true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	defer cursor.Close(ctx)

	var docs []paymentAddressDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}

	out := make([]payment_entities.PaymentAddress, 0)
	for _, d := range docs {
		// Only addresses without a confirmed sweep are pending recovery.
		var sweepDoc sweepTransactionDoc
		err := s.db.Collection(sweepTransactionsCollection).FindOne(ctx, bson.M{
			"from_address": d.Address,
			"status":       string(payment_entities.SweepStatusConfirmed),
		}).Decode(&sweepDoc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			a, convErr := d.toEntity()
			if convErr != nil {
				return nil, convErr
			}
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *PaymentStore) MarkAddressSwept(ctx context.Context, paymentID uuid.UUID, swept bool) error {
	_, err := s.db.Collection(paymentAddressesCollection).UpdateOne(ctx, bson.M{"payment_id": paymentID}, bson.M{
		"$set": bson.M{"swept": swept},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return nil
}

// --- sweep transactions ---

type sweepTransactionDoc struct {
	TxHash      string    `bson:"_id"`
	FromAddress string    `bson:"from_address"`
	ToAddress   string    `bson:"to_address"`
	Amount      string    `bson:"amount"`
	GasUsed     uint64    `bson:"gas_used"`
	GasPrice    string    `bson:"gas_price"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d sweepTransactionDoc) toEntity() (*payment_entities.SweepTransaction, error) {
	amount, err := payment_vo.NewAmount(d.Amount)
	if err != nil {
		return nil, err
	}
	gasPrice := payment_vo.Zero()
	if d.GasPrice != "" {
		if gasPrice, err = payment_vo.NewAmount(d.GasPrice); err != nil {
			return nil, err
		}
	}
	from, err := payment_vo.NewEVMAddress(d.FromAddress)
	if err != nil {
		return nil, err
	}
	to, err := payment_vo.NewEVMAddress(d.ToAddress)
	if err != nil {
		return nil, err
	}
	return &payment_entities.SweepTransaction{
		TransactionHash: d.TxHash,
		FromAddress:     from,
		ToAddress:       to,
		Amount:          amount,
		GasUsed:         d.GasUsed,
		GasPrice:        gasPrice,
		Status:          payment_entities.SweepStatus(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

func (s *PaymentStore) RecordSweepTransaction(ctx context.Context, tx payment_entities.SweepTransaction) error {
	now := time.Now()
	doc := sweepTransactionDoc{
		TxHash:      tx.TransactionHash,
		FromAddress: tx.FromAddress.String(),
		ToAddress:   tx.ToAddress.String(),
		Amount:      tx.Amount.String(),
		GasUsed:     tx.GasUsed,
		GasPrice:    tx.GasPrice.String(),
		Status:      string(tx.Status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Collection(sweepTransactionsCollection).InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return nil
}

func (s *PaymentStore) UpdateSweepTransaction(ctx context.Context, txHash string, status payment_entities.SweepStatus) error {
	_, err := s.db.Collection(sweepTransactionsCollection).UpdateOne(ctx, bson.M{"_id": txHash}, bson.M{
		"$set": bson.M{"status": string(status), "updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return nil
}

func (s *PaymentStore) GetSweepTransaction(ctx context.Context, fromAddress payment_vo.EVMAddress) (*payment_entities.SweepTransaction, error) {
	var doc sweepTransactionDoc
	err := s.db.Collection(sweepTransactionsCollection).FindOne(ctx, bson.M{"from_address": fromAddress.String()}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return doc.toEntity()
}

// --- wallet config (singleton) ---

type walletConfigDoc struct {
	ID                   string `bson:"_id"`
	MasterAddress        string `bson:"master_address"`
	SweepThreshold       string `bson:"sweep_threshold"`
	AutoSweepEnabled     bool   `bson:"auto_sweep_enabled"`
	SweepIntervalMinutes int    `bson:"sweep_interval_minutes"`
}

func (s *PaymentStore) GetWalletConfig(ctx context.Context) (*payment_entities.WalletConfig, error) {
	var doc walletConfigDoc
	err := s.db.Collection(walletConfigCollection).FindOne(ctx, bson.M{"_id": walletConfigSingletonID}).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: wallet config not provisioned: %v", apperror.ErrStore, err)
	}
	addr, err := payment_vo.NewEVMAddress(doc.MasterAddress)
	if err != nil {
		return nil, err
	}
	threshold, err := payment_vo.NewAmount(doc.SweepThreshold)
	if err != nil {
		return nil, err
	}
	return &payment_entities.WalletConfig{
		MasterAddress:        addr,
		SweepThreshold:       threshold,
		AutoSweepEnabled:     doc.AutoSweepEnabled,
		SweepIntervalMinutes: doc.SweepIntervalMinutes,
	}, nil
}

// --- follower cursor (singleton) ---

type followerCursorDoc struct {
	ID          string `bson:"_id"`
	BlockNumber uint64 `bson:"block_number"`
}

func (s *PaymentStore) BlockCursor(ctx context.Context) (uint64, error) {
	var doc followerCursorDoc
	err := s.db.Collection(followerCursorCollection).FindOne(ctx, bson.M{"_id": followerCursorSingletonID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return doc.BlockNumber, nil
}

func (s *PaymentStore) AdvanceCursor(ctx context.Context, blockNumber uint64) error {
	_, err := s.db.Collection(followerCursorCollection).UpdateOne(ctx, bson.M{"_id": followerCursorSingletonID}, bson.M{
		"$set": bson.M{"block_number": blockNumber},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrStore, err)
	}
	return nil
}

func statusPtr(s payment_entities.PaymentStatus) *payment_entities.PaymentStatus { return &s }
