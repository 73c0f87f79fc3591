// persistence/mongo.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wfunc/diceserver/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection   = "users"
	salonsCollection  = "salons"
	resultsCollection = "game_results"
)

// MongoStore implements Store on the document layout shared with the profile API:
// users keyed by telegram_id, salons embedding their tables and seated players.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("dice-server"))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(resultsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "game_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// numericOr stores numeric ids as int64 the way the profile API writes them.
func numericOr(id string) interface{} {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func userFilter(playerID models.PlayerID) bson.M {
	return bson.M{"telegram_id": numericOr(playerID.String())}
}

type mongoUser struct {
	TonAmount float64  `bson:"ton_amount"`
	Items     []bson.M `bson:"items"`
}

func (s *MongoStore) findUser(ctx context.Context, playerID models.PlayerID) (*mongoUser, error) {
	var user mongoUser
	err := s.db.Collection(usersCollection).FindOne(ctx, userFilter(playerID)).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) FindBalance(ctx context.Context, playerID models.PlayerID) (decimal.Decimal, error) {
	user, err := s.findUser(ctx, playerID)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(user.TonAmount), nil
}

// ApplyReward raises the reputation_points of every owned item by the reward
// percentage and credits ton_amount.
func (s *MongoStore) ApplyReward(ctx context.Context, playerID models.PlayerID, reward models.Reward) error {
	user, err := s.findUser(ctx, playerID)
	if err != nil {
		return err
	}

	for _, item := range user.Items {
		switch points := item["reputation_points"].(type) {
		case int32:
			item["reputation_points"] = points + points*int32(reward.ReputationPercent)/100
		case int64:
			item["reputation_points"] = points + points*int64(reward.ReputationPercent)/100
		}
	}

	update := bson.M{"$set": bson.M{"items": user.Items}}
	if !reward.Currency.IsZero() {
		update["$inc"] = bson.M{"ton_amount": reward.Currency.InexactFloat64()}
	}

	_, err = s.db.Collection(usersCollection).UpdateOne(ctx, userFilter(playerID), update)
	return err
}

// DeductEntryCost debits ton_amount only if the balance covers it.
func (s *MongoStore) DeductEntryCost(ctx context.Context, playerID models.PlayerID, amount decimal.Decimal) error {
	cost := amount.InexactFloat64()
	filter := userFilter(playerID)
	filter["ton_amount"] = bson.M{"$gte": cost}

	res, err := s.db.Collection(usersCollection).UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"ton_amount": -cost}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.findUser(ctx, playerID); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}
	return nil
}

func tableFilter(salonID, tableID string) bson.M {
	return bson.M{
		"salon_id":        numericOr(salonID),
		"tables.table_id": numericOr(tableID),
	}
}

func (s *MongoStore) SeatedPlayers(ctx context.Context, salonID, tableID string) ([]models.PlayerID, error) {
	var salon struct {
		Tables []struct {
			TableID interface{} `bson:"table_id"`
			Players []struct {
				PlayerID interface{} `bson:"player_id"`
			} `bson:"players"`
		} `bson:"tables"`
	}

	err := s.db.Collection(salonsCollection).FindOne(ctx, tableFilter(salonID, tableID)).Decode(&salon)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	for _, t := range salon.Tables {
		if fmt.Sprint(t.TableID) != tableID {
			continue
		}
		players := make([]models.PlayerID, 0, len(t.Players))
		for _, p := range t.Players {
			players = append(players, models.PlayerID(fmt.Sprint(p.PlayerID)))
		}
		return players, nil
	}
	return nil, ErrRecordNotFound
}

func (s *MongoStore) ClearSeatedPlayers(ctx context.Context, salonID, tableID string) error {
	res, err := s.db.Collection(salonsCollection).UpdateOne(ctx,
		tableFilter(salonID, tableID),
		bson.M{"$set": bson.M{"tables.$.players": bson.A{}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) AppendSettlementRecord(ctx context.Context, record *models.SettlementRecord) error {
	players := make(bson.A, 0, len(record.Players))
	for _, p := range record.Players {
		players = append(players, bson.M{
			"player_id":          p.PlayerID.String(),
			"rolls":              p.Rolls,
			"total_roll":         p.Total,
			"rank":               p.Rank,
			"bot":                p.Bot,
			"reputation_percent": p.Reward.ReputationPercent,
			"currency":           p.Reward.Currency.String(),
			"reward_error":       p.RewardError,
		})
	}

	_, err := s.db.Collection(resultsCollection).InsertOne(ctx, bson.M{
		"game_id":    record.GameID,
		"salon_id":   record.SalonID,
		"table_id":   record.TableID,
		"winner_id":  record.WinnerID.String(),
		"abandoned":  record.Abandoned,
		"players":    players,
		"started_at": record.StartedAt,
		"settled_at": record.SettledAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateRecord
	}
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
