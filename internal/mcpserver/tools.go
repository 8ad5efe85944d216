package mcpserver

import "context"

// toolHandler is the shape every tools_*.go function implements: given the
// request context (carrying the caller's authctx.Identity), the shared
// Deps, and the tool's arguments, return a ready-to-serialize result
// payload. Business-logic failures are reported in the payload's "status"
// field (spec.md §7), not as a Go error — only truly unrecognized tool
// names reach the JSON-RPC error path.
type toolHandler func(ctx context.Context, deps *Deps, args map[string]any) map[string]any

// toolEntry pairs a handler with whether the tool requires no
// authentication at all (spec.md §4.4's two public tools).
type toolEntry struct {
	handler toolHandler
	public  bool
}

// toolTable is the full catalogue of spec.md's tools/call names. Static
// (not reflection-based) dispatch, matching the hand-rolled JSON-RPC
// layer around it.
var toolTable = map[string]toolEntry{
	"system_health": {handler: toolSystemHealth, public: true},
	"system_about":  {handler: toolSystemAbout, public: true},

	"space_create":  {handler: toolSpaceCreate},
	"space_list":    {handler: toolSpaceList},
	"space_info":    {handler: toolSpaceInfo},
	"space_rules":   {handler: toolSpaceRules},
	"space_summary": {handler: toolSpaceSummary},
	"space_export":  {handler: toolSpaceExport},
	"space_delete":  {handler: toolSpaceDelete},

	"live_note":   {handler: toolLiveNote},
	"live_read":   {handler: toolLiveRead},
	"live_search": {handler: toolLiveSearch},

	"bank_list":        {handler: toolBankList},
	"bank_read":        {handler: toolBankRead},
	"bank_read_all":    {handler: toolBankReadAll},
	"bank_consolidate": {handler: toolBankConsolidate},

	"backup_create":   {handler: toolBackupCreate},
	"backup_list":     {handler: toolBackupList},
	"backup_restore":  {handler: toolBackupRestore},
	"backup_download": {handler: toolBackupDownload},
	"backup_delete":   {handler: toolBackupDelete},

	"admin_create_token": {handler: toolAdminCreateToken},
	"admin_list_tokens":  {handler: toolAdminListTokens},
	"admin_revoke_token": {handler: toolAdminRevokeToken},
	"admin_update_token": {handler: toolAdminUpdateToken},
	"admin_gc_notes":     {handler: toolAdminGCNotes},

	"graph_connect":    {handler: toolGraphConnect},
	"graph_push":       {handler: toolGraphPush},
	"graph_status":     {handler: toolGraphStatus},
	"graph_disconnect": {handler: toolGraphDisconnect},
}
