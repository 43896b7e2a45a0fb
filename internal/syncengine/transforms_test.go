package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewritePathMatchesSegmentBoundary(t *testing.T) {
	assert.Equal(t, "/home/agent/.claude/plugins/foo.json", rewritePath(".claude/plugins/foo.json", hostPluginRoot, containerPluginRoot))
	assert.Equal(t, "/home/agent/.claude/plugins", rewritePath(".claude/plugins", hostPluginRoot, containerPluginRoot))
}

func TestRewritePathLeavesSiblingPathsAlone(t *testing.T) {
	assert.Equal(t, ".claude/plugins-backup/foo.json", rewritePath(".claude/plugins-backup/foo.json", hostPluginRoot, containerPluginRoot))
	assert.Equal(t, "other/path.json", rewritePath("other/path.json", hostPluginRoot, containerPluginRoot))
}
