package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// labelClassifier returns a fixed result per exact input text.
type labelClassifier struct {
	results map[string]sentiment.Result
	fail    map[string]error
	calls   []string
}

func (c *labelClassifier) Classify(_ context.Context, text string) (sentiment.Result, error) {
	c.calls = append(c.calls, text)
	if err, ok := c.fail[text]; ok {
		return sentiment.Result{}, err
	}
	return c.results[text], nil
}

func result(label string, conf float64) sentiment.Result {
	return sentiment.Result{Sentiment: label, Confidence: conf}
}

func TestAnalyzeText(t *testing.T) {
	c := &labelClassifier{results: map[string]sentiment.Result{"super": result("positive", 0.91)}}
	svc := NewService(c, nil)

	res, err := svc.AnalyzeText(context.Background(), "super")

	require.NoError(t, err)
	assert.Equal(t, result("positive", 0.91), res)
}

func TestAnalyzeTextPropagatesErrorUnchanged(t *testing.T) {
	verr := sentiment.ValidationError("text cleaning failed: empty or invalid result")
	c := &labelClassifier{fail: map[string]error{"": verr}}
	svc := NewService(c, nil)

	_, err := svc.AnalyzeText(context.Background(), "")

	assert.Same(t, verr, err)
}

func TestAnalyzeArticle(t *testing.T) {
	c := &labelClassifier{results: map[string]sentiment.Result{
		"article": result("positive", 0.8),
		"c1":      result("positive", 0.9),
		"c2":      result("negative", 0.7),
		"c3":      result("positive", 0.6),
	}}
	svc := NewService(c, nil)

	got, err := svc.AnalyzeArticle(context.Background(), ArticleInput{
		Text:   "article",
		Author: "Marie",
		Comments: []Comment{
			{Author: "a", Content: "c1"},
			{Content: "c2"},
			{Author: "c", Content: "c3"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"article", "c1", "c2", "c3"}, c.calls)
	assert.Equal(t, Item{Type: "article", Author: "Marie", Content: "article", Sentiment: "positive", Confidence: 0.8}, got.Post)

	require.Len(t, got.Comments, 3)
	assert.Equal(t, "c1", got.Comments[0].Content)
	assert.Equal(t, "unknown", got.Comments[1].Author)
	assert.Equal(t, "commentaire", got.Comments[1].Type)
	assert.Equal(t, "negative", got.Comments[1].Sentiment)
	assert.Equal(t, "c3", got.Comments[2].Content)

	assert.Equal(t, map[string]float64{"positive": 0.667, "negative": 0.333}, got.Distribution)
}

func TestAnalyzeArticleDefaultsAuthor(t *testing.T) {
	c := &labelClassifier{results: map[string]sentiment.Result{"a": result("neutral", 0.5)}}
	got, err := NewService(c, nil).AnalyzeArticle(context.Background(), ArticleInput{Text: "a"})

	require.NoError(t, err)
	assert.Equal(t, DefaultAuthor, got.Post.Author)
}

func TestAnalyzeArticleNoComments(t *testing.T) {
	c := &labelClassifier{results: map[string]sentiment.Result{"a": result("neutral", 0.5)}}
	got, err := NewService(c, nil).AnalyzeArticle(context.Background(), ArticleInput{Text: "a"})

	require.NoError(t, err)
	assert.NotNil(t, got.Comments)
	assert.Empty(t, got.Comments)
	assert.NotNil(t, got.Distribution)
	assert.Empty(t, got.Distribution)
}

func TestAnalyzeArticleArticleFailureAborts(t *testing.T) {
	boom := sentiment.BackendError("running model", errors.New("oom"))
	c := &labelClassifier{fail: map[string]error{"a": boom}}

	got, err := NewService(c, nil).AnalyzeArticle(context.Background(), ArticleInput{
		Text:     "a",
		Comments: []Comment{{Content: "c1"}},
	})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, sentiment.KindBackend, sentiment.KindOf(err))
	assert.Equal(t, []string{"a"}, c.calls)
}

func TestAnalyzeArticleCommentFailureAborts(t *testing.T) {
	verr := sentiment.ValidationError("text cleaning failed: empty or invalid result")
	c := &labelClassifier{
		results: map[string]sentiment.Result{"a": result("positive", 0.9), "c1": result("positive", 0.9)},
		fail:    map[string]error{"<<<>>>": verr},
	}

	got, err := NewService(c, nil).AnalyzeArticle(context.Background(), ArticleInput{
		Text:     "a",
		Comments: []Comment{{Content: "c1"}, {Content: "<<<>>>"}, {Content: "c3"}},
	})

	assert.Nil(t, got)
	assert.Equal(t, sentiment.KindValidation, sentiment.KindOf(err))
	assert.Contains(t, err.Error(), "comment 1")
	assert.NotContains(t, c.calls, "c3")
}

func TestDistributionSumsToOne(t *testing.T) {
	labels := []string{"positive", "negative", "neutral", "positive", "neutral", "neutral", "negative"}
	for n := 1; n <= len(labels); n++ {
		items := make([]Item, n)
		for i := range items {
			items[i] = Item{Sentiment: labels[i]}
		}

		var sum float64
		for _, v := range Distribution(items) {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 0.002, "n=%d", n)
	}
}

func TestDistributionOnlyObservedLabels(t *testing.T) {
	d := Distribution([]Item{{Sentiment: "neutral"}, {Sentiment: "neutral"}})
	assert.Equal(t, map[string]float64{"neutral": 1}, d)
}
