package pages

import (
	"fmt"
	"time"
)

// Page kinds. Scene pages carry the printed spreads; cover pages feed the
// cover hero selection.
const (
	KindScene          = "scene"
	KindFinalCover     = "final_cover"
	KindStoryboardCover = "storyboard_cover"
)

// FinalPage is one candidate illustrated page for a scene, versioned. Versions
// are written by the content pipeline; approval is an admin action and at most
// one version per scene is approved at any time.
type FinalPage struct {
	StoryID    string    `dynamodbav:"story_id"` // PK
	PageID     string    `dynamodbav:"page_id"`  // SK, see PageID()
	Kind       string    `dynamodbav:"kind"`
	SceneNo    int       `dynamodbav:"scene_no"`
	Version    int       `dynamodbav:"version"` // monotonic per scene, starting at 1
	ImageURL   string    `dynamodbav:"image_url"`
	Text       string    `dynamodbav:"text,omitempty"` // caption printed on the spread
	IsApproved bool      `dynamodbav:"is_approved"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
}

// PageID builds the sort key. Zero-padding keeps scene order equal to lexical
// order within a story partition.
func PageID(kind string, sceneNo, version int) string {
	if kind == KindScene {
		return fmt.Sprintf("scene#%06d#v%04d", sceneNo, version)
	}
	return fmt.Sprintf("cover#%s#v%04d", kind, version)
}
