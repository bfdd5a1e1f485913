package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-ingest/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	LeadsCollection         = "leads"
	WebhookLogsCollection   = "webhook_logs"
	WebhookErrorsCollection = "webhook_errors"
	UsersCollection         = "users"

	DefaultListLimit = 100
	MaxListLimit     = 500
)

// LeadFilter narrows ListLeads. Zero values mean "no filter" / default limit.
type LeadFilter struct {
	Status models.LeadStatus
	Limit  int64
}

type MongoDB struct {
	client        *mongo.Client
	leads         *mongo.Collection
	webhookLogs   *mongo.Collection
	webhookErrors *mongo.Collection
	users         *mongo.Collection
	logger        *zap.Logger
}

func NewMongoDB(uri, database string, logger *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// MongoDB Atlas specific client options
	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(100).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetSocketTimeout(30 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Successfully connected to MongoDB", zap.String("database", database))

	db := client.Database(database)
	m := &MongoDB{
		client:        client,
		leads:         db.Collection(LeadsCollection),
		webhookLogs:   db.Collection(WebhookLogsCollection),
		webhookErrors: db.Collection(WebhookErrorsCollection),
		users:         db.Collection(UsersCollection),
		logger:        logger,
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return m, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.leads: {
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "contactId", Value: 1},
				},
			},
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "receivedAt", Value: -1},
				},
			},
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "status", Value: 1},
				},
			},
		},
		m.webhookLogs: {
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "receivedAt", Value: -1},
				},
			},
		},
		m.webhookErrors: {
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "receivedAt", Value: -1},
				},
			},
		},
	}

	for coll, idx := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// InsertLead stores a fully assembled lead and sets its generated ID.
func (m *MongoDB) InsertLead(ctx context.Context, lead *models.Lead) error {
	if lead.Status == "" {
		lead.Status = models.LeadStatusOpen
	}

	res, err := m.leads.InsertOne(ctx, lead)
	if err != nil {
		m.logger.Error("Failed to insert lead",
			zap.Error(err),
			zap.String("user_id", lead.UserID),
			zap.String("contact_id", lead.ContactID))
		return fmt.Errorf("insert lead: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		lead.ID = id
	}
	return nil
}

// UpdateLeadStatus sets status on every lead of userID with contactID and
// reports how many leads matched. The UpdateMany runs inside a transaction so
// the batch is applied to all matched leads or to none; this needs a replica
// set or sharded cluster, which Atlas always provides.
func (m *MongoDB) UpdateLeadStatus(ctx context.Context, userID, contactID string, status models.LeadStatus) (int64, error) {
	filter, update := statusUpdate(userID, contactID, status)

	session, err := m.client.StartSession()
	if err != nil {
		return 0, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	matched, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := m.leads.UpdateMany(sc, filter, update)
		if err != nil {
			return nil, err
		}
		return res.MatchedCount, nil
	})
	if err != nil {
		return 0, fmt.Errorf("update lead status: %w", err)
	}
	return matched.(int64), nil
}

func statusUpdate(userID, contactID string, status models.LeadStatus) (bson.M, bson.M) {
	filter := bson.M{
		"contactId": contactID,
		"userId":    userID,
	}
	update := bson.M{
		"$set": bson.M{
			"status": status,
		},
	}
	return filter, update
}

func (m *MongoDB) InsertWebhookLog(ctx context.Context, entry *models.WebhookLog) error {
	res, err := m.webhookLogs.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		entry.ID = id
	}
	return nil
}

func (m *MongoDB) InsertWebhookError(ctx context.Context, entry *models.WebhookError) error {
	res, err := m.webhookErrors.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("insert webhook error: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		entry.ID = id
	}
	return nil
}

// GetAccessToken returns the user's Graph API token, or "" when the user or
// the token does not exist.
func (m *MongoDB) GetAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := m.GetUserCredential(ctx, userID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", nil
	}
	return cred.MetaAccessToken, nil
}

// GetUserCredential returns nil without error when the user has no settings document.
func (m *MongoDB) GetUserCredential(ctx context.Context, userID string) (*models.UserCredential, error) {
	var cred models.UserCredential
	err := m.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user settings: %w", err)
	}
	return &cred, nil
}

// UpsertUserCredential merges the settings into the user's document.
func (m *MongoDB) UpsertUserCredential(ctx context.Context, cred *models.UserCredential) error {
	set := bson.M{
		"metaAccessToken": cred.MetaAccessToken,
		"updatedAt":       cred.UpdatedAt,
	}
	if cred.WhitelabelDomain != "" {
		set["whitelabelDomain"] = cred.WhitelabelDomain
	}

	_, err := m.users.UpdateOne(ctx,
		bson.M{"_id": cred.UserID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user settings: %w", err)
	}
	return nil
}

func (m *MongoDB) ListLeads(ctx context.Context, userID string, filter LeadFilter) ([]*models.Lead, error) {
	query := bson.M{"userId": userID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	var leads []*models.Lead
	if err := m.findNewest(ctx, m.leads, query, filter.Limit, &leads); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

func (m *MongoDB) ListWebhookLogs(ctx context.Context, userID string, limit int64) ([]*models.WebhookLog, error) {
	var logs []*models.WebhookLog
	if err := m.findNewest(ctx, m.webhookLogs, bson.M{"userId": userID}, limit, &logs); err != nil {
		return nil, fmt.Errorf("list webhook logs: %w", err)
	}
	return logs, nil
}

func (m *MongoDB) ListWebhookErrors(ctx context.Context, userID string, limit int64) ([]*models.WebhookError, error) {
	var errs []*models.WebhookError
	if err := m.findNewest(ctx, m.webhookErrors, bson.M{"userId": userID}, limit, &errs); err != nil {
		return nil, fmt.Errorf("list webhook errors: %w", err)
	}
	return errs, nil
}

func (m *MongoDB) findNewest(ctx context.Context, coll *mongo.Collection, filter bson.M, limit int64, out interface{}) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "receivedAt", Value: -1}}).
		SetLimit(ClampLimit(limit))

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int64) int64 {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
