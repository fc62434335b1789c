package chat

import (
	"time"

	"senat/internal/group"
)

// Client -> server events.
const (
	EventRegister      = "register"
	EventLogin         = "login"
	EventAutoLogin     = "auto_login"
	EventLogout        = "logout"
	EventSearchUsers   = "search_users"
	EventFriendRequest = "send_friend_request"
	EventAcceptFriend  = "accept_friend_request"
	EventRejectFriend  = "reject_friend_request"
	EventBlockUser     = "block_user"
	EventUnblockUser   = "unblock_user"
	EventBanUser       = "ban_user"
	EventUnbanUser     = "unban_user"
	EventSetAdmin      = "set_admin"
	EventCreateGroup   = "create_group"
	EventGetGroups     = "get_groups"
	EventAddToGroup    = "add_to_group"
	EventRemoveFromGrp = "remove_from_group"
	EventUpdateGroup   = "update_group"
	EventDeleteGroup   = "delete_group"
	EventSetGroupAdmin = "set_group_admin"
	EventMessage       = "message"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
	EventClearChat     = "request_clear_chat"
	EventJoinRoom      = "join_room"
	EventGetHistory    = "get_history"
	EventUpdateProfile = "update_profile"
	EventSaveFile      = "save_file"
)

// Server -> client events.
const (
	EventRegisterSuccess       = "register_success"
	EventRegisterError         = "register_error"
	EventLoginSuccess          = "login_success"
	EventLoginError            = "login_error"
	EventLoggedOut             = "logged_out"
	EventHistory               = "history"
	EventUserList              = "user_list"
	EventAllUsers              = "all_users"
	EventSearchResults         = "search_results"
	EventFriendRequestSent     = "friend_request_sent"
	EventFriendRequestReceived = "friend_request_received"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRequestRejected = "friend_request_rejected"
	EventFriendsUpdated        = "friends_updated"
	EventFriendError           = "friend_error"
	EventUserBlocked           = "user_blocked"
	EventUserUnblocked         = "user_unblocked"
	EventBanned                = "banned"
	EventUserBanned            = "user_banned"
	EventUserUnbanned          = "user_unbanned"
	EventBanError              = "ban_error"
	EventAdminUpdated          = "admin_updated"
	EventAdminError            = "admin_error"
	EventGroupCreated          = "group_created"
	EventGroupsList            = "groups_list"
	EventGroupMemberAdded      = "group_member_added"
	EventGroupMemberRemoved    = "group_member_removed"
	EventGroupUpdated          = "group_updated"
	EventGroupDeleted          = "group_deleted"
	EventGroupAdminUpdated     = "group_admin_updated"
	EventGroupError            = "group_error"
	EventMessageEdited         = "message_edited"
	EventMessageDeleted        = "message_deleted"
	EventMessageError          = "message_error"
	EventClearChatRequested    = "clear_chat_requested"
	EventChatCleared           = "chat_cleared"
	EventClearChatError        = "clear_chat_error"
	EventProfileUpdated        = "profile_updated"
	EventProfileError          = "profile_error"
	EventFileSaved             = "file_saved"
	EventError                 = "error"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type errorPayload struct {
	Msg string `json:"msg"`
}

type usernamePayload struct {
	Username string `json:"username"`
}

type historyPayload struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

type loginPayload struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Avatar      string   `json:"avatar"`
	IsAdmin     bool     `json:"is_admin"`
	Friends     []string `json:"friends"`
	PendingIn   []string `json:"pending_in"`
	PendingOut  []string `json:"pending_out"`
	Blocked     []string `json:"blocked"`
	Token       string   `json:"token,omitempty"`
}

type rosterEntry struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
	IsAdmin     bool      `json:"is_admin"`
	LastSeen    time.Time `json:"last_seen"`
}

// directoryEntry is a user as seen by one viewer.
type directoryEntry struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
	IsFriend    bool      `json:"is_friend"`
	IsBlocked   bool      `json:"is_blocked"`
	PendingOut  bool      `json:"pending_out"`
	PendingIn   bool      `json:"pending_in"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"last_seen"`
}

type friendRequestPayload struct {
	From        string `json:"from"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

type friendsPayload struct {
	Friends    []string `json:"friends"`
	PendingIn  []string `json:"pending_in"`
	PendingOut []string `json:"pending_out"`
}

type bannedPayload struct {
	Reason   string `json:"reason"`
	BannedBy string `json:"banned_by"`
}

type userBannedPayload struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

type adminPayload struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type groupMemberPayload struct {
	GroupID  string      `json:"group_id"`
	Username string      `json:"username"`
	Group    group.Group `json:"group"`
}

type groupUpdatedPayload struct {
	GroupID string `json:"group_id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
}

type groupDeletedPayload struct {
	GroupID string `json:"group_id"`
}

type groupAdminPayload struct {
	GroupID  string      `json:"group_id"`
	Username string      `json:"username"`
	IsAdmin  bool        `json:"is_admin"`
	Group    group.Group `json:"group"`
}

type messageEditedPayload struct {
	ID       int64  `json:"id"`
	NewText  string `json:"new_text"`
	Room     string `json:"room"`
	EditTime string `json:"edit_time"`
}

type messageDeletedPayload struct {
	ID   int64  `json:"id"`
	Room string `json:"room"`
}

type clearRequestPayload struct {
	From string `json:"from"`
	Chat string `json:"chat"`
}

type chatClearedPayload struct {
	Chat string `json:"chat"`
}

type profilePayload struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

type fileSavedPayload struct {
	FileData string `json:"file_data"`
	Filename string `json:"filename"`
}
