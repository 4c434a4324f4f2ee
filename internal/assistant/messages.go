package assistant

// Canned replies.
const (
	MsgWelcome = "Xin chào! Tôi là trợ lý ảo MM Shop. Tôi có thể giúp bạn tìm kiếm sản phẩm, xem chi tiết và thêm vào giỏ hàng. Bạn cần hỗ trợ gì ạ?"

	MsgNotUnderstood = "Xin lỗi, tôi không hiểu yêu cầu của bạn. Bạn có thể nói rõ hơn được không?"
	MsgGenericError  = "Xin lỗi, đã xảy ra lỗi khi xử lý yêu cầu của bạn."

	MsgSearchFound     = "Tôi đã tìm thấy %d sản phẩm cho \"%s\". Bạn có thể nhấp vào sản phẩm để xem chi tiết."
	MsgSearchNone      = "Tôi không tìm thấy sản phẩm nào phù hợp với \"%s\". Bạn có thể thử tìm kiếm với từ khóa khác."
	MsgSearchFailed    = "Xin lỗi, tôi không thể tìm kiếm sản phẩm lúc này."
	MsgSearchFailedDbg = "Lỗi tìm kiếm sản phẩm: %v"

	MsgDetailsNeedSKU    = "Vui lòng cung cấp mã SKU của sản phẩm bạn muốn xem."
	MsgDetailsNotFound   = "Tôi không tìm thấy thông tin cho sản phẩm với mã SKU: %s."
	MsgDetailsFailed     = "Xin lỗi, tôi không thể lấy thông tin sản phẩm lúc này."
	MsgDetailsFailedDbg  = "Lỗi lấy chi tiết sản phẩm: %v"
	MsgAddNeedSKU        = "Vui lòng cung cấp mã SKU của sản phẩm bạn muốn thêm vào giỏ hàng."
	MsgAddFailed         = "Xin lỗi, tôi không thể thêm sản phẩm vào giỏ hàng lúc này."
	MsgAddFailedDbg      = "Lỗi thêm vào giỏ hàng: %v"
	MsgCartEmpty         = "Giỏ hàng của bạn hiện đang trống."
	MsgCartFailed        = "Xin lỗi, tôi không thể hiển thị giỏ hàng lúc này."
	MsgCartFailedDbg     = "Lỗi xem giỏ hàng: %v"
	MsgCheckoutEmpty     = "Giỏ hàng của bạn hiện đang trống, không thể thanh toán."
	MsgCheckoutFailed    = "Xin lỗi, tôi không thể xử lý thanh toán lúc này."
	MsgCheckoutFailedDbg = "Lỗi thanh toán: %v"

	MsgDebugOn  = "Đã bật chế độ debug"
	MsgDebugOff = "Đã tắt chế độ debug"

	MsgAPIOK         = "✅ API %s hoạt động bình thường!"
	MsgAPIFailed     = "❌ Lỗi kết nối API %s: %v"
	MsgBackendOK     = "✅ Backend hoạt động bình thường!"
	MsgBackendNoData = "❌ Backend không trả về dữ liệu"
	MsgBackendFailed = "❌ Lỗi kết nối backend: %v"
	MsgLoginUsage    = "Cú pháp: /login <email> <mật khẩu>"
	MsgLoginOK       = "✅ Đã đăng nhập với tài khoản %s."
	MsgLoginFailed   = "❌ Đăng nhập thất bại: %v"
	MsgLogoutOK      = "Đã đăng xuất."
	MsgLogoutFailed  = "❌ Đăng xuất thất bại: %v"
	MsgNewChatFailed = "❌ Không thể tạo cuộc trò chuyện mới: %v"
	MsgHelp          = "Các lệnh hỗ trợ:\n\n" +
		"- `/debug`: bật/tắt chế độ debug\n" +
		"- `/test-api`: kiểm tra kết nối mô hình ngôn ngữ\n" +
		"- `/test-backend`: kiểm tra kết nối backend\n" +
		"- `/login <email> <mật khẩu>`: đăng nhập\n" +
		"- `/logout`: đăng xuất\n" +
		"- `/new`: bắt đầu cuộc trò chuyện mới\n" +
		"- `/help`: xem danh sách lệnh"
)
