package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/phillip/localhub-go/models"
)

func mockStore(mt *mtest.T) *Store {
	return New(mt.Client, mt.DB.Name())
}

func ns(mt *mtest.T, collection string) string {
	return mt.DB.Name() + "." + collection
}

// nextCommand pops the next issued command and checks its name and target collection.
func nextCommand(mt *mtest.T, name, collection string) *event.CommandStartedEvent {
	mt.Helper()
	ev := mt.GetStartedEvent()
	require.NotNil(mt, ev, "expected %s on %s", name, collection)
	require.Equal(mt, name, ev.CommandName)
	assert.Equal(mt, collection, ev.Command.Lookup(name).StringValue())
	return ev
}

// firstStatement returns the first entry of an update or delete batch.
func firstStatement(ev *event.CommandStartedEvent, field string) bson.Raw {
	return ev.Command.Lookup(field).Array().Index(0).Value().Document()
}

func updated(n int32) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

func deleted(n int32) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n})
}

func TestInsertCounted(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("bumps the post then inserts", func(mt *mtest.T) {
		s := mockStore(mt)
		comment := &models.Comment{ID: primitive.NewObjectID(), PostID: primitive.NewObjectID(), Content: "see you there"}
		mt.AddMockResponses(updated(1), mtest.CreateSuccessResponse())

		require.NoError(mt, s.insertCounted(context.Background(), comment))

		ev := nextCommand(mt, "update", ColPosts)
		stmt := firstStatement(ev, "updates")
		assert.Equal(mt, comment.PostID, stmt.Lookup("q", "_id").ObjectID())
		assert.Equal(mt, int64(1), stmt.Lookup("u", "$inc", "comment_count").AsInt64())

		ev = nextCommand(mt, "insert", ColComments)
		doc := ev.Command.Lookup("documents").Array().Index(0).Value().Document()
		assert.Equal(mt, comment.ID, doc.Lookup("_id").ObjectID())
		assert.Equal(mt, "see you there", doc.Lookup("content").StringValue())
	})

	mt.Run("missing post aborts before insert", func(mt *mtest.T) {
		s := mockStore(mt)
		mt.AddMockResponses(updated(0))

		err := s.insertCounted(context.Background(), &models.Comment{PostID: primitive.NewObjectID()})
		assert.ErrorIs(mt, err, ErrNotFound)

		nextCommand(mt, "update", ColPosts)
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("write error is wrapped", func(mt *mtest.T) {
		s := mockStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad update"}))

		err := s.insertCounted(context.Background(), &models.Comment{PostID: primitive.NewObjectID()})
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrNotFound)
		assert.Contains(mt, err.Error(), "increment comment count")
	})
}

func TestDeleteCounted(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("removes then decrements", func(mt *mtest.T) {
		s := mockStore(mt)
		commentID, postID := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{{Key: "_id", Value: commentID}, {Key: "post_id", Value: postID}}}),
			updated(1),
		)

		require.NoError(mt, s.deleteCounted(context.Background(), commentID))

		ev := nextCommand(mt, "findAndModify", ColComments)
		assert.True(mt, ev.Command.Lookup("remove").Boolean())
		assert.Equal(mt, commentID, ev.Command.Lookup("query", "_id").ObjectID())

		ev = nextCommand(mt, "update", ColPosts)
		stmt := firstStatement(ev, "updates")
		assert.Equal(mt, postID, stmt.Lookup("q", "_id").ObjectID())
		assert.Equal(mt, int64(0), stmt.Lookup("q", "comment_count", "$gt").AsInt64())
		assert.Equal(mt, int64(-1), stmt.Lookup("u", "$inc", "comment_count").AsInt64())
	})

	mt.Run("missing comment", func(mt *mtest.T) {
		s := mockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := s.deleteCounted(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)

		nextCommand(mt, "findAndModify", ColComments)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestDeleteBusinessCascade(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("children before the business", func(mt *mtest.T) {
		s := mockStore(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt, ColBusinesses), mtest.FirstBatch, bson.D{
				{Key: "_id", Value: id},
				{Key: "name", Value: "Corner Bakery"},
				{Key: "logo", Value: "https://img.test/logo.png"},
				{Key: "images", Value: bson.A{"https://img.test/front.png"}},
			}),
			mtest.CreateCursorResponse(0, ns(mt, ColEvents), mtest.FirstBatch,
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "images", Value: bson.A{"https://img.test/event.png"}}},
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}},
			),
			mtest.CreateCursorResponse(0, ns(mt, ColJobs), mtest.FirstBatch,
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "images", Value: bson.A{"https://img.test/job.png"}}},
			),
			deleted(2),
			deleted(1),
			deleted(4),
			deleted(30),
			deleted(1),
		)

		res, err := s.DeleteBusinessCascade(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), res.EventsDeleted)
		assert.Equal(mt, int64(1), res.JobsDeleted)
		assert.Equal(mt, "Corner Bakery", res.Business.Name)
		assert.ElementsMatch(mt, []string{
			"https://img.test/front.png",
			"https://img.test/logo.png",
			"https://img.test/event.png",
			"https://img.test/job.png",
		}, res.Images)

		nextCommand(mt, "find", ColBusinesses)
		nextCommand(mt, "find", ColEvents)
		nextCommand(mt, "find", ColJobs)
		for _, col := range []string{ColEvents, ColJobs, ColReviews} {
			ev := nextCommand(mt, "delete", col)
			assert.Equal(mt, id, firstStatement(ev, "deletes").Lookup("q", "business_id").ObjectID())
		}
		ev := nextCommand(mt, "delete", ColAnalytics)
		q := firstStatement(ev, "deletes").Lookup("q").Document()
		assert.Equal(mt, models.SubjectBusiness, q.Lookup("kind").StringValue())
		assert.Equal(mt, id, q.Lookup("subject_id").ObjectID())

		ev = nextCommand(mt, "delete", ColBusinesses)
		assert.Equal(mt, id, firstStatement(ev, "deletes").Lookup("q", "_id").ObjectID())
	})

	mt.Run("missing business deletes nothing", func(mt *mtest.T) {
		s := mockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, ColBusinesses), mtest.FirstBatch))

		_, err := s.DeleteBusinessCascade(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)

		nextCommand(mt, "find", ColBusinesses)
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("failed child delete keeps the business", func(mt *mtest.T) {
		s := mockStore(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt, ColBusinesses), mtest.FirstBatch, bson.D{{Key: "_id", Value: id}}),
			mtest.CreateCursorResponse(0, ns(mt, ColEvents), mtest.FirstBatch),
			mtest.CreateCursorResponse(0, ns(mt, ColJobs), mtest.FirstBatch),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}),
		)

		_, err := s.DeleteBusinessCascade(context.Background(), id)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "delete events")

		nextCommand(mt, "find", ColBusinesses)
		nextCommand(mt, "find", ColEvents)
		nextCommand(mt, "find", ColJobs)
		nextCommand(mt, "delete", ColEvents)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestRecordSponsorView(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	at := time.Date(2026, 5, 3, 9, 30, 0, 0, time.UTC)

	mt.Run("one atomic update on an active sponsor", func(mt *mtest.T) {
		s := mockStore(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Riverside Print"},
			{Key: "is_active", Value: true},
			{Key: "views", Value: int64(8)},
			{Key: "monthly_views", Value: int64(3)},
		}}))

		sp, err := s.RecordSponsorView(context.Background(), id, at)
		require.NoError(mt, err)
		assert.Equal(mt, int64(8), sp.Views)

		ev := nextCommand(mt, "findAndModify", ColSponsors)
		cmd := ev.Command
		assert.Equal(mt, id, cmd.Lookup("query", "_id").ObjectID())
		assert.True(mt, cmd.Lookup("query", "is_active").Boolean())
		assert.Equal(mt, int64(1), cmd.Lookup("update", "$inc", "views").AsInt64())
		assert.Equal(mt, int64(1), cmd.Lookup("update", "$inc", "monthly_views").AsInt64())
		assert.True(mt, at.Equal(cmd.Lookup("update", "$set", "last_shown_at").Time()))
		assert.True(mt, cmd.Lookup("new").Boolean())
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("inactive or gone", func(mt *mtest.T) {
		s := mockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		_, err := s.RecordSponsorView(context.Background(), primitive.NewObjectID(), at)
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestIncrementCounter(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upserts the day", func(mt *mtest.T) {
		s := mockStore(mt)
		subject := primitive.NewObjectID()
		mt.AddMockResponses(updated(1))

		err := s.IncrementCounter(context.Background(), models.SubjectBusiness, subject, "2026-05-03", models.CounterViews, 3)
		require.NoError(mt, err)

		ev := nextCommand(mt, "update", ColAnalytics)
		stmt := firstStatement(ev, "updates")
		assert.True(mt, stmt.Lookup("upsert").Boolean())
		assert.Equal(mt, models.SubjectBusiness, stmt.Lookup("q", "kind").StringValue())
		assert.Equal(mt, subject, stmt.Lookup("q", "subject_id").ObjectID())
		assert.Equal(mt, "2026-05-03", stmt.Lookup("q", "day").StringValue())
		assert.Equal(mt, int64(3), stmt.Lookup("u", "$inc", "counters.views").AsInt64())
	})

	mt.Run("error names the counter", func(mt *mtest.T) {
		s := mockStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))

		err := s.IncrementCounter(context.Background(), models.SubjectSponsor, primitive.NewObjectID(), "2026-05-03", models.CounterImpressions, 1)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "increment impressions")
	})
}

func TestFindOrCreateConversation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upsert keyed on the sorted pair", func(mt *mtest.T) {
		s := mockStore(mt)
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		key := models.ConversationKey(a, b)
		convID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: convID},
			{Key: "key", Value: key},
			{Key: "participants", Value: bson.A{a, b}},
		}}))

		conv, err := s.FindOrCreateConversation(context.Background(), b, a)
		require.NoError(mt, err)
		assert.Equal(mt, convID, conv.ID)
		assert.True(mt, conv.HasParticipant(a))

		ev := nextCommand(mt, "findAndModify", ColConversations)
		cmd := ev.Command
		assert.Equal(mt, key, cmd.Lookup("query", "key").StringValue())
		assert.True(mt, cmd.Lookup("upsert").Boolean())
		assert.True(mt, cmd.Lookup("new").Boolean())

		participants, err := cmd.Lookup("update", "$setOnInsert", "participants").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, participants, 2)
		assert.LessOrEqual(mt, participants[0].ObjectID().Hex(), participants[1].ObjectID().Hex())
	})
}
