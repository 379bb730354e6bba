// roster/store/mongo_store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/kwanta/matchday/shared/models"
	"github.com/kwanta/matchday/shared/mongodb"
)

// MongoCollections names the three collections the roster lives in.
type MongoCollections struct {
	Matches string
	Teams   string
	Players string
}

// MongoStore persists the roster in MongoDB.
//
// Slot exclusivity rests on two things: every claim transaction bumps roster_version on its match
// document, so concurrent transactions on one match hit a write conflict and are retried by the driver
// against fresh state; and a unique index on (match_id, team_id, slot_number) rejects any second
// occupant that slips past that.
type MongoStore struct {
	client  *mongodb.Client
	matches *mongo.Collection
	teams   *mongo.Collection
	players *mongo.Collection
}

// NewMongoStore creates a MongoStore over the given client.
func NewMongoStore(client *mongodb.Client, names MongoCollections) *MongoStore {
	return &MongoStore{
		client:  client,
		matches: client.Collection(names.Matches),
		teams:   client.Collection(names.Teams),
		players: client.Collection(names.Players),
	}
}

var _ RosterStore = (*MongoStore)(nil)

// RunInTx runs fn inside a snapshot transaction. Transient conflicts are retried by the driver,
// errors returned by fn abort the transaction and are passed through unchanged.
func (ms *MongoStore) RunInTx(ctx context.Context, fn TxFunc) error {
	session, err := ms.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start MongoDB session: %w", err)
	}
	defer session.EndSession(context.Background())

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, &mongoTx{ms})
	}, txOpts)
	return err
}

// EnsureSchema creates the indexes, including the unique slot key.
func (ms *MongoStore) EnsureSchema(ctx context.Context) error {
	if _, err := ms.players.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "match_id", Value: 1}, {Key: "team_id", Value: 1}, {Key: "slot_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_match_team_slot"),
		},
	}); err != nil {
		return fmt.Errorf("failed to create player indexes: %w", err)
	}
	if _, err := ms.teams.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "match_id", Value: 1}, {Key: "index", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_match_index"),
		},
	}); err != nil {
		return fmt.Errorf("failed to create team indexes: %w", err)
	}
	if _, err := ms.matches.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("created_at_desc")},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("owner_created")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetName("status_date")},
	}); err != nil {
		return fmt.Errorf("failed to create match indexes: %w", err)
	}
	log.Println("INFO: MongoDB roster indexes ensured.")
	return nil
}

func (ms *MongoStore) Ping(ctx context.Context) error {
	return ms.client.Ping(ctx)
}

func (ms *MongoStore) Close(ctx context.Context) error {
	return ms.client.Disconnect(ctx)
}

// GetMatch retrieves a match by id. Returns ErrNotFound if it does not exist.
func (ms *MongoStore) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	if err := ms.matches.FindOne(ctx, bson.M{"_id": matchID}).Decode(&match); err != nil {
		return nil, notFoundOr(err, "failed to get match %s", matchID)
	}
	return &match, nil
}

func (ms *MongoStore) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	var team models.Team
	if err := ms.teams.FindOne(ctx, bson.M{"_id": teamID}).Decode(&team); err != nil {
		return nil, notFoundOr(err, "failed to get team %s", teamID)
	}
	return &team, nil
}

func (ms *MongoStore) FindPlayerInSlot(ctx context.Context, matchID, teamID string, slotNumber int) (*models.Player, error) {
	var player models.Player
	filter := bson.M{"match_id": matchID, "team_id": teamID, "slot_number": slotNumber}
	if err := ms.players.FindOne(ctx, filter).Decode(&player); err != nil {
		return nil, notFoundOr(err, "failed to find player in slot %s/%s/%d", matchID, teamID, slotNumber)
	}
	return &player, nil
}

func (ms *MongoStore) ListTeams(ctx context.Context, matchIDs ...string) ([]models.Team, error) {
	teams := []models.Team{}
	opts := options.Find().SetSort(bson.D{{Key: "match_id", Value: 1}, {Key: "index", Value: 1}})
	cursor, err := ms.teams.Find(ctx, bson.M{"match_id": bson.M{"$in": matchIDs}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find teams: %w", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &teams); err != nil {
		return nil, fmt.Errorf("failed to decode teams: %w", err)
	}
	return teams, nil
}

func (ms *MongoStore) ListPlayers(ctx context.Context, matchIDs ...string) ([]models.Player, error) {
	players := []models.Player{}
	opts := options.Find().SetSort(bson.D{{Key: "team_id", Value: 1}, {Key: "slot_number", Value: 1}})
	cursor, err := ms.players.Find(ctx, bson.M{"match_id": bson.M{"$in": matchIDs}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find players: %w", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &players); err != nil {
		return nil, fmt.Errorf("failed to decode players: %w", err)
	}
	return players, nil
}

func (ms *MongoStore) ListMatches(ctx context.Context, filter MatchFilter) ([]models.Match, error) {
	query := bson.M{}
	if filter.OwnerID != "" {
		query["owner_id"] = filter.OwnerID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	matches := []models.Match{}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := ms.matches.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find matches: %w", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	return matches, nil
}

// mongoTx adds the write side. Its reads are the store's reads: a session context routes them into
// the running transaction.
type mongoTx struct {
	*MongoStore
}

func (tx *mongoTx) LockMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := tx.matches.FindOneAndUpdate(ctx,
		bson.M{"_id": matchID},
		bson.M{"$inc": bson.M{"roster_version": 1}},
		opts,
	).Decode(&match)
	if err != nil {
		return nil, notFoundOr(err, "failed to lock match %s", matchID)
	}
	return &match, nil
}

func (tx *mongoTx) InsertMatch(ctx context.Context, match *models.Match) error {
	_, err := tx.matches.InsertOne(ctx, match)
	return duplicateOr(err, "failed to insert match %s", match.ID)
}

func (tx *mongoTx) InsertTeam(ctx context.Context, team *models.Team) error {
	_, err := tx.teams.InsertOne(ctx, team)
	return duplicateOr(err, "failed to insert team %s", team.ID)
}

func (tx *mongoTx) InsertPlayer(ctx context.Context, player *models.Player) error {
	_, err := tx.players.InsertOne(ctx, player)
	return duplicateOr(err, "failed to insert player into slot %s/%s/%d", player.MatchID, player.TeamID, player.SlotNumber)
}

func (tx *mongoTx) UpdateMatchStatus(ctx context.Context, matchID string, status models.MatchStatus) error {
	res, err := tx.matches.UpdateOne(ctx, bson.M{"_id": matchID}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("failed to update status of match %s: %w", matchID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *mongoTx) DeletePlayer(ctx context.Context, playerID string) error {
	res, err := tx.players.DeleteOne(ctx, bson.M{"_id": playerID})
	if err != nil {
		return fmt.Errorf("failed to delete player %s: %w", playerID, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *mongoTx) DeletePlayersByMatch(ctx context.Context, matchID string) (int64, error) {
	res, err := tx.players.DeleteMany(ctx, bson.M{"match_id": matchID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete players of match %s: %w", matchID, err)
	}
	return res.DeletedCount, nil
}

func (tx *mongoTx) DeleteTeamsByMatch(ctx context.Context, matchID string) (int64, error) {
	res, err := tx.teams.DeleteMany(ctx, bson.M{"match_id": matchID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete teams of match %s: %w", matchID, err)
	}
	return res.DeletedCount, nil
}

func (tx *mongoTx) DeleteMatch(ctx context.Context, matchID string) error {
	res, err := tx.matches.DeleteOne(ctx, bson.M{"_id": matchID})
	if err != nil {
		return fmt.Errorf("failed to delete match %s: %w", matchID, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func duplicateOr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf(format+": %w", append(args, ErrDuplicate)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
