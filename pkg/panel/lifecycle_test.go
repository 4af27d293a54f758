package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/panelist/pkg/dom"
)

func attachFixture(t *testing.T, rawHTML string) *engineFixture {
	t.Helper()
	f := newEngineFixture(t, rawHTML)
	require.NoError(t, f.manager.Attach(f.panel))
	return f
}

func countLabel(t *testing.T, f *engineFixture) string {
	t.Helper()
	count, ok := f.doc.Query("[" + attrInjected + "=count]")
	require.True(t, ok, "footer count label must be injected")
	return count.Text()
}

func TestManagerAttachBuildsSession(t *testing.T) {
	f := attachFixture(t, panelFixture)

	assert.True(t, f.manager.Active())
	sess := f.manager.ActiveSession()
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID)
	require.NotNil(t, sess.Selection())
	assert.Len(t, sess.Selection().Items(), 3)
	require.NotNil(t, sess.Search())

	_, marked := f.panel.Attr(attrProcessed)
	assert.True(t, marked)

	_, ok := f.panel.Query("input[" + attrInjected + "=search]")
	assert.True(t, ok)
	assert.Equal(t, "1 selected", countLabel(t, f))
}

func TestManagerRoutesRowClicks(t *testing.T) {
	f := attachFixture(t, panelFixture)

	label, ok := f.rowNamed(t, "Cooking").Query(".label")
	require.True(t, ok)
	assert.True(t, f.click(label), "row click must be consumed")

	items := f.manager.ActiveSession().Selection().Items()
	assert.True(t, items[1].Selected())
	assert.Equal(t, "2 selected", countLabel(t, f))

	// Clicking again toggles back.
	assert.True(t, f.click(label))
	assert.False(t, items[1].Selected())
	assert.Equal(t, "1 selected", countLabel(t, f))
}

func TestManagerIgnoresClicksOutsideRows(t *testing.T) {
	f := attachFixture(t, panelFixture)

	title, ok := f.panel.Query("#title")
	require.True(t, ok)
	assert.True(t, f.click(title), "clicks inside the panel are still consumed")
	assert.Equal(t, "1 selected", countLabel(t, f))

	input, ok := f.panel.Query("input[" + attrInjected + "=search]")
	require.True(t, ok)
	assert.True(t, f.click(input))
	assert.Equal(t, "1 selected", countLabel(t, f))
}

func TestManagerRoutesSearchInput(t *testing.T) {
	f := attachFixture(t, panelFixture)

	input, ok := f.panel.Query("input[" + attrInjected + "=search]")
	require.True(t, ok)

	f.doc.Dispatch(input, dom.Event{Type: "input", Value: "guitar"})
	f.sched.runAll()

	assert.True(t, rowHidden(t, f, "Cooking"))
	assert.False(t, rowHidden(t, f, "Guitar practice"))

	// Escape on the input resets the filter.
	f.doc.Dispatch(input, dom.Event{Type: "keydown", Key: "Escape"})
	assert.False(t, rowHidden(t, f, "Cooking"))
}

func TestManagerSaveFlow(t *testing.T) {
	f := attachFixture(t, panelFixture)
	sess := f.manager.ActiveSession()

	label, ok := f.rowNamed(t, "Cooking").Query(".label")
	require.True(t, ok)
	require.True(t, f.click(label))

	save, ok := f.doc.Query("[" + attrInjected + "=save]")
	require.True(t, ok)
	require.True(t, f.click(save))
	assert.True(t, sess.Selection().Saving())

	// One host interaction already replayed, the chain timer is pending.
	require.Len(t, f.doc.HostClicks(), 1)
	require.True(t, f.sched.runNext())

	assert.False(t, sess.Selection().Saving())

	toast, ok := f.doc.Query("[" + attrInjected + "=toast]")
	require.True(t, ok)
	level, _ := toast.Attr("data-plst-toast-level")
	assert.Equal(t, string(ToastSuccess), level)
	assert.Contains(t, toast.Text(), "1 added")

	// No backdrop in the fixture, so dismissal fell back to Escape.
	assert.Equal(t, 1, f.doc.EscapeCount())

	// The toast removes itself.
	f.sched.runAll()
	_, ok = f.doc.Query("[" + attrInjected + "=toast]")
	assert.False(t, ok)
}

func TestManagerSaveMethod(t *testing.T) {
	f := newEngineFixture(t, panelFixture)

	// No session attached yet.
	assert.ErrorIs(t, f.manager.Save(), ErrNoSession)

	require.NoError(t, f.manager.Attach(f.panel))
	sess := f.manager.ActiveSession()

	label, ok := f.rowNamed(t, "Cooking").Query(".label")
	require.True(t, ok)
	require.True(t, f.click(label))

	require.NoError(t, f.manager.Save())
	assert.True(t, sess.Selection().Saving())
	f.sched.runNext()
	assert.False(t, sess.Selection().Saving())
}

func TestManagerSaveWithNoChanges(t *testing.T) {
	f := attachFixture(t, panelFixture)

	save, ok := f.doc.Query("[" + attrInjected + "=save]")
	require.True(t, ok)
	require.True(t, f.click(save))

	toast, ok := f.doc.Query("[" + attrInjected + "=toast]")
	require.True(t, ok)
	level, _ := toast.Attr("data-plst-toast-level")
	assert.Equal(t, string(ToastInfo), level)
	assert.Equal(t, 0, f.doc.EscapeCount())
}

func TestManagerSaveDismissesViaBackdrop(t *testing.T) {
	f := newEngineFixture(t, `<html><body>
		<tp-yt-iron-overlay-backdrop></tp-yt-iron-overlay-backdrop>
		<tp-yt-paper-dialog>
			<ytd-add-to-playlist-renderer>
				<div id="title">Save video to...</div>
				<div id="playlists">
					<ytd-playlist-add-to-option-renderer>
						<tp-yt-paper-checkbox aria-checked="false"></tp-yt-paper-checkbox>
						<div class="label">Mix</div>
					</ytd-playlist-add-to-option-renderer>
				</div>
			</ytd-add-to-playlist-renderer>
		</tp-yt-paper-dialog>
	</body></html>`)
	require.NoError(t, f.manager.Attach(f.panel))

	label, ok := f.rowNamed(t, "Mix").Query(".label")
	require.True(t, ok)
	require.True(t, f.click(label))

	save, ok := f.doc.Query("[" + attrInjected + "=save]")
	require.True(t, ok)
	require.True(t, f.click(save))
	f.sched.runNext()

	assert.Equal(t, 0, f.doc.EscapeCount())
	// The backdrop click is outside the interception scope, so it reached
	// the host: one apply click plus the dismissal click.
	assert.Len(t, f.doc.HostClicks(), 2)
}

func TestManagerCleanupRestoresPanel(t *testing.T) {
	f := attachFixture(t, panelFixture)
	f.manager.Cleanup()

	assert.False(t, f.manager.Active())
	_, marked := f.panel.Attr(attrProcessed)
	assert.False(t, marked)
	_, ok := f.panel.Query("[" + attrInjected + "]")
	assert.False(t, ok, "injected nodes must be scrubbed")

	// The interception scope is revoked: clicks reach the host again.
	label, ok := f.rowNamed(t, "Cooking").Query(".label")
	require.True(t, ok)
	assert.False(t, f.click(label))

	// Cleanup is idempotent.
	f.manager.Cleanup()
	assert.False(t, f.manager.Active())
}

func TestManagerReattachReplacesSession(t *testing.T) {
	f := attachFixture(t, panelFixture)
	first := f.manager.ActiveSession()

	require.NoError(t, f.manager.Attach(f.panel))
	second := f.manager.ActiveSession()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, f.panel.QueryAll("["+attrInjected+"=footer]"), 1)
	assert.Len(t, f.panel.QueryAll("input["+attrInjected+"=search]"), 1)
}

func TestManagerAttachFailsCleanlyWithoutRows(t *testing.T) {
	f := newEngineFixture(t, `<html><body>
		<ytd-add-to-playlist-renderer>
			<div id="title">Save video to...</div>
			<div id="playlists"></div>
		</ytd-add-to-playlist-renderer>
	</body></html>`)

	err := f.manager.Attach(f.panel)
	require.Error(t, err)
	assert.False(t, f.manager.Active())

	// Zero enhancement: no markers, no injected nodes, no interception.
	_, marked := f.panel.Attr(attrProcessed)
	assert.False(t, marked)
	_, ok := f.panel.Query("[" + attrInjected + "]")
	assert.False(t, ok)

	title, ok := f.panel.Query("#title")
	require.True(t, ok)
	assert.False(t, f.click(title))
}

func TestManagerAttachWithInlineRows(t *testing.T) {
	// No dedicated list container: selection degrades to watching the panel
	// itself, so the injected footer and search input land in the watched
	// subtree while attach still holds the engine lock.
	f := newEngineFixture(t, `<html><body>
		<tp-yt-paper-dialog>
			<ytd-add-to-playlist-renderer>
				<div id="title">Save video to...</div>
				<ytd-playlist-add-to-option-renderer>
					<tp-yt-paper-checkbox aria-checked="false"></tp-yt-paper-checkbox>
					<div class="label">Mix</div>
				</ytd-playlist-add-to-option-renderer>
			</ytd-add-to-playlist-renderer>
		</tp-yt-paper-dialog>
	</body></html>`)

	require.NoError(t, f.manager.Attach(f.panel))
	sess := f.manager.ActiveSession()
	require.NotNil(t, sess)
	assert.Len(t, sess.Selection().Items(), 1)
	assert.Equal(t, "0 selected", countLabel(t, f))
}

func TestManagerScrubsResidueOnAttach(t *testing.T) {
	f := newEngineFixture(t, panelFixture)
	require.NoError(t, f.panel.SetAttr(attrProcessed, "1"))
	row := f.rowNamed(t, "Cooking")
	require.NoError(t, row.SetAttr(attrDecorated, "1"))
	require.NoError(t, row.SetStyle("display", "none"))

	require.NoError(t, f.manager.Attach(f.panel))

	// Residue from the stale session is gone; the fresh session re-marked
	// what it owns.
	assert.False(t, rowHidden(t, f, "Cooking"))
	assert.True(t, f.manager.Active())
}
