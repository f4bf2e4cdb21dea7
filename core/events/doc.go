// Package events defines the typed session event contract.
//
// Events fall into three receiver-facing groups:
//
//   - user_input.*: what the user said, live and final.
//   - assistant.*: the streamed reply, its synthesis and playback.
//   - session.*: connection state, turn state and errors.
//
// Status and error events are deliberately distinct from transcript events
// so frontends can display connection state independent of conversation
// content.
package events
