// Package creds implements the credential resolution pipeline that runs
// before every outbound GitLab call.
//
// Resolution order, first success wins:
//
//  1. An explicit token attached to this specific call (per-request
//     override)
//  2. The pipeline's own TTL cache
//  3. The interactive OAuth manager, when configured
//  4. An external secret-retrieval command, when configured
//  5. A permission-checked secret file, when configured
//  6. The statically configured default token
//
// Independent of which branch resolves the bearer, the pipeline keeps the
// optional browser cookie jar fresh and warms each API root once per jar
// load so cookie-authenticated sessions work server-side.
package creds
