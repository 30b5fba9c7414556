package agents

var builtin = []Definition{
	{Name: "Amp", CLIName: "amp", ProjectPath: ".agents/skills/", GlobalPath: "~/.config/agents/skills/", ConfigPath: "~/.config/amp/"},
	{Name: "Antigravity", CLIName: "antigravity", ProjectPath: ".agent/skills/", GlobalPath: "~/.gemini/antigravity/skills/", ConfigPath: "~/.gemini/antigravity/"},
	{Name: "Claude Code", CLIName: "claude-code", ProjectPath: ".claude/skills/", GlobalPath: "~/.claude/skills/", ConfigPath: "~/.claude/"},
	{Name: "Clawdbot", CLIName: "clawdbot", ProjectPath: "skills/", GlobalPath: "~/.clawdbot/skills/", ConfigPath: "~/.clawdbot/"},
	{Name: "Cline", CLIName: "cline", ProjectPath: ".cline/skills/", GlobalPath: "~/.cline/skills/", ConfigPath: "~/.cline/"},
	{Name: "CodeBuddy", CLIName: "codebuddy", ProjectPath: ".codebuddy/skills/", GlobalPath: "~/.codebuddy/skills/", ConfigPath: "~/.codebuddy/"},
	{Name: "Codex", CLIName: "codex", ProjectPath: ".codex/skills/", GlobalPath: "~/.codex/skills/", ConfigPath: "~/.codex/"},
	{Name: "Command Code", CLIName: "command-code", ProjectPath: ".commandcode/skills/", GlobalPath: "~/.commandcode/skills/", ConfigPath: "~/.commandcode/"},
	{Name: "Continue", CLIName: "continue", ProjectPath: ".continue/skills/", GlobalPath: "~/.continue/skills/", ConfigPath: "~/.continue/"},
	{Name: "Crush", CLIName: "crush", ProjectPath: ".crush/skills/", GlobalPath: "~/.config/crush/skills/", ConfigPath: "~/.config/crush/"},
	{Name: "Cursor", CLIName: "cursor", ProjectPath: ".cursor/skills/", GlobalPath: "~/.cursor/skills/", ConfigPath: "~/.cursor/"},
	{Name: "Droid", CLIName: "droid", ProjectPath: ".factory/skills/", GlobalPath: "~/.factory/skills/", ConfigPath: "~/.factory/"},
	{Name: "Gemini CLI", CLIName: "gemini-cli", ProjectPath: ".gemini/skills/", GlobalPath: "~/.gemini/skills/", ConfigPath: "~/.gemini/"},
	{Name: "GitHub Copilot", CLIName: "github-copilot", ProjectPath: ".github/skills/", GlobalPath: "~/.copilot/skills/", ConfigPath: "~/.copilot/"},
	{Name: "Goose", CLIName: "goose", ProjectPath: ".goose/skills/", GlobalPath: "~/.config/goose/skills/", ConfigPath: "~/.config/goose/"},
	{Name: "Junie", CLIName: "junie", ProjectPath: ".junie/skills/", GlobalPath: "~/.junie/skills/", ConfigPath: "~/.junie/"},
	{Name: "Kilo Code", CLIName: "kilo", ProjectPath: ".kilocode/skills/", GlobalPath: "~/.kilocode/skills/", ConfigPath: "~/.kilocode/"},
	{Name: "Kimi Code CLI", CLIName: "kimi-cli", ProjectPath: ".agents/skills/", GlobalPath: "~/.config/agents/skills/", ConfigPath: "~/.kimi/"},
	{Name: "Kiro CLI", CLIName: "kiro-cli", ProjectPath: ".kiro/skills/", GlobalPath: "~/.kiro/skills/", ConfigPath: "~/.kiro/"},
	{Name: "Kode", CLIName: "kode", ProjectPath: ".kode/skills/", GlobalPath: "~/.kode/skills/", ConfigPath: "~/.kode/"},
	{Name: "MCPJam", CLIName: "mcpjam", ProjectPath: ".mcpjam/skills/", GlobalPath: "~/.mcpjam/skills/", ConfigPath: "~/.mcpjam/"},
	{Name: "Mux", CLIName: "mux", ProjectPath: ".mux/skills/", GlobalPath: "~/.mux/skills/", ConfigPath: "~/.mux/"},
	{Name: "Neovate", CLIName: "neovate", ProjectPath: ".neovate/skills/", GlobalPath: "~/.neovate/skills/", ConfigPath: "~/.neovate/"},
	{Name: "OpenCode", CLIName: "opencode", ProjectPath: ".opencode/skills/", GlobalPath: "~/.config/opencode/skills/", ConfigPath: "~/.config/opencode/"},
	{Name: "OpenHands", CLIName: "openhands", ProjectPath: ".openhands/skills/", GlobalPath: "~/.openhands/skills/", ConfigPath: "~/.openhands/"},
	{Name: "Pi", CLIName: "pi", ProjectPath: ".pi/skills/", GlobalPath: "~/.pi/agent/skills/", ConfigPath: "~/.pi/agent/"},
	{Name: "Pochi", CLIName: "pochi", ProjectPath: ".pochi/skills/", GlobalPath: "~/.pochi/skills/", ConfigPath: "~/.pochi/"},
	{Name: "Qoder", CLIName: "qoder", ProjectPath: ".qoder/skills/", GlobalPath: "~/.qoder/skills/", ConfigPath: "~/.qoder/"},
	{Name: "Qwen Code", CLIName: "qwen-code", ProjectPath: ".qwen/skills/", GlobalPath: "~/.qwen/skills/", ConfigPath: "~/.qwen/"},
	{Name: "Roo Code", CLIName: "roo", ProjectPath: ".roo/skills/", GlobalPath: "~/.roo/skills/", ConfigPath: "~/.roo/"},
	{Name: "Trae", CLIName: "trae", ProjectPath: ".trae/skills/", GlobalPath: "~/.trae/skills/", ConfigPath: "~/.trae/"},
	{Name: "Windsurf", CLIName: "windsurf", ProjectPath: ".windsurf/skills/", GlobalPath: "~/.codeium/windsurf/skills/", ConfigPath: "~/.codeium/windsurf/"},
	{Name: "Zencoder", CLIName: "zencoder", ProjectPath: ".zencoder/skills/", GlobalPath: "~/.zencoder/skills/", ConfigPath: "~/.zencoder/"},
}
