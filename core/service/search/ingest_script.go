package search

import "strings"

// NormalizeScript folds traditional Chinese characters to their simplified
// forms so index queries match either script. Characters outside the table,
// and non-CJK text, pass through untouched.
func NormalizeScript(text string) string {
	if text == "" {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	changed := false
	for _, r := range text {
		if s, ok := traditionalToSimplified[r]; ok {
			b.WriteRune(s)
			changed = true
		} else {
			b.WriteRune(r)
		}
	}
	if !changed {
		return text
	}
	return b.String()
}

// traditionalToSimplified covers the high-frequency characters seen in mail
// subjects and bodies. It is intentionally a single-codepoint map; phrase
// level conversion is out of scope for index normalization.
var traditionalToSimplified = map[rune]rune{
	'萬': '万', '與': '与', '醜': '丑', '專': '专', '業': '业',
	'叢': '丛', '東': '东', '絲': '丝', '丟': '丢', '兩': '两',
	'嚴': '严', '喪': '丧', '個': '个', '豐': '丰', '臨': '临',
	'為': '为', '麗': '丽', '舉': '举', '麼': '么', '義': '义',
	'烏': '乌', '樂': '乐', '喬': '乔', '習': '习', '鄉': '乡',
	'書': '书', '買': '买', '亂': '乱', '爭': '争', '於': '于',
	'虧': '亏', '雲': '云', '亙': '亘', '亞': '亚', '產': '产',
	'億': '亿', '僅': '仅', '從': '从', '倉': '仓', '儀': '仪',
	'們': '们', '價': '价', '眾': '众', '優': '优', '會': '会',
	'傴': '伛', '傘': '伞', '偉': '伟', '傳': '传', '傷': '伤',
	'倀': '伥', '倫': '伦', '佇': '伫', '體': '体', '餘': '余',
	'傭': '佣', '僉': '佥', '來': '来', '俠': '侠', '侶': '侣',
	'僥': '侥', '側': '侧', '儕': '侪', '儂': '侬', '俁': '俣',
	'儔': '俦', '儼': '俨', '倆': '俩', '儷': '俪', '儉': '俭',
	'債': '债', '傾': '倾', '傯': '偬', '僂': '偻', '僨': '偾',
	'償': '偿', '儻': '傥', '儐': '傧', '儲': '储', '儺': '傩',
	'黨': '党', '兌': '兑', '兒': '儿', '兗': '兖', '內': '内',
	'岡': '冈', '冊': '册', '寫': '写', '軍': '军', '農': '农',
	'馮': '冯', '衝': '冲', '決': '决', '況': '况', '凍': '冻',
	'淨': '净', '涼': '凉', '減': '减', '湊': '凑', '凜': '凛',
	'幾': '几', '鳳': '凤', '鳧': '凫', '憑': '凭', '凱': '凯',
	'擊': '击', '氹': '凼', '鑿': '凿', '芻': '刍', '劃': '划',
	'劉': '刘', '則': '则', '剛': '刚', '創': '创', '刪': '删',
	'別': '别', '剗': '刬', '剄': '刭', '劊': '刽', '劌': '刿',
	'剴': '剀', '劑': '剂', '剝': '剥', '劇': '剧', '勸': '劝',
	'辦': '办', '務': '务', '勱': '劢', '動': '动', '勵': '励',
	'勁': '劲', '勞': '劳', '勢': '势', '勳': '勋',
	'勝': '胜', '匯': '汇', '區': '区', '醫': '医', '華': '华',
	'協': '协', '單': '单', '賣': '卖', '盧': '卢', '鹵': '卤',
	'臥': '卧', '衛': '卫', '卻': '却', '廠': '厂', '廳': '厅',
	'歷': '历', '厲': '厉', '壓': '压', '厭': '厌', '厙': '厍',
	'廁': '厕', '厴': '厣', '廈': '厦', '廚': '厨', '廄': '厩',
	'廝': '厮', '縣': '县', '參': '参', '靉': '叆', '雙': '双',
	'發': '发', '變': '变', '敘': '叙', '疊': '叠', '葉': '叶',
	'號': '号', '嘆': '叹', '嘰': '叽', '籲': '吁', '後': '后',
	'嚇': '吓', '呂': '吕', '嗎': '吗', '唚': '吣', '噸': '吨',
	'聽': '听', '啟': '启', '吳': '吴', '嘸': '呒', '囈': '呓',
	'嘔': '呕', '嚦': '呖', '唄': '呗', '員': '员', '咼': '呙',
	'嗆': '呛', '嗚': '呜', '詠': '咏', '嚨': '咙', '嚀': '咛',
	'噝': '咝', '響': '响', '啞': '哑', '噠': '哒', '嘵': '哓',
	'嗶': '哔', '噦': '哕', '嘩': '哗', '噲': '哙', '嚌': '哜',
	'噥': '哝', '喲': '哟', '嘜': '唛', '嗊': '唝', '嘮': '唠',
	'問': '问', '間': '间', '聞': '闻', '閱': '阅', '閉': '闭',
	'開': '开', '關': '关', '門': '门', '閃': '闪', '閣': '阁',
	'隊': '队', '陽': '阳', '陰': '阴', '陳': '陈', '陸': '陆',
	'際': '际', '隨': '随', '險': '险', '隱': '隐', '難': '难',
	'雞': '鸡', '離': '离', '電': '电', '須': '须', '頁': '页',
	'頂': '顶', '項': '项', '順': '顺', '頑': '顽', '顧': '顾',
	'頓': '顿', '頒': '颁', '頌': '颂', '預': '预', '領': '领',
	'頻': '频', '題': '题', '額': '额', '願': '愿', '風': '风',
	'飛': '飞', '飯': '饭', '飲': '饮', '飾': '饰',
	'飽': '饱', '餓': '饿', '館': '馆', '馬': '马', '駐': '驻',
	'驗': '验', '驚': '惊', '魚': '鱼', '鮮': '鲜',
	'鳥': '鸟', '鳴': '鸣', '麥': '麦', '點': '点', '齊': '齐',
	'齒': '齿', '龍': '龙', '龜': '龟', '語': '语', '說': '说',
	'請': '请', '讀': '读', '誰': '谁', '課': '课', '調': '调',
	'談': '谈', '謝': '谢', '證': '证', '評': '评', '識': '识',
	'詞': '词', '譯': '译', '試': '试', '詩': '诗', '誠': '诚',
	'話': '话', '誕': '诞', '詳': '详', '誤': '误', '諸': '诸',
	'講': '讲', '訂': '订', '計': '计', '訊': '讯', '記': '记',
	'讓': '让', '訓': '训', '議': '议', '訪': '访', '設': '设',
	'貝': '贝', '貞': '贞', '負': '负', '貢': '贡', '財': '财',
	'責': '责', '賢': '贤', '敗': '败', '貨': '货', '質': '质',
	'販': '贩', '貪': '贪', '貧': '贫', '購': '购', '貯': '贮',
	'貫': '贯', '費': '费', '賀': '贺', '貴': '贵', '貸': '贷',
	'貿': '贸', '賬': '账', '賒': '赊', '贈': '赠', '資': '资',
	'賽': '赛', '賺': '赚', '車': '车', '軌': '轨', '軟': '软',
	'轉': '转', '輪': '轮', '輕': '轻', '較': '较', '輸': '输',
	'轎': '轿', '輛': '辆', '邊': '边', '達': '达', '遷': '迁',
	'過': '过', '邁': '迈', '運': '运', '還': '还', '這': '这',
	'進': '进', '遠': '远', '違': '违', '連': '连', '遲': '迟',
	'選': '选', '遜': '逊', '遞': '递', '適': '适', '釋': '释',
	'裡': '里', '鑒': '鉴', '錢': '钱', '銀': '银', '鐵': '铁',
	'鋪': '铺', '銷': '销', '鎖': '锁', '錯': '错', '錄': '录',
	'鍵': '键', '鏡': '镜', '長': '长', '頭': '头', '實': '实',
	'寶': '宝', '審': '审', '寬': '宽', '賓': '宾', '對': '对',
	'尋': '寻', '導': '导', '將': '将', '爾': '尔', '塵': '尘',
	'嘗': '尝', '層': '层', '屆': '届', '屬': '属', '歲': '岁',
	'豈': '岂', '峽': '峡', '島': '岛', '嶺': '岭', '師': '师',
	'幫': '帮', '帶': '带', '幀': '帧', '幣': '币', '廣': '广',
	'莊': '庄', '慶': '庆', '廢': '废', '應': '应', '廟': '庙',
	'龐': '庞', '廬': '庐', '異': '异', '棄': '弃', '張': '张',
	'彌': '弥', '彎': '弯', '歸': '归', '當': '当', '徹': '彻',
	'徑': '径', '禦': '御', '憶': '忆', '懇': '恳', '態': '态',
	'慫': '怂', '憮': '怃', '惡': '恶', '慮': '虑', '懸': '悬',
	'悵': '怅', '愴': '怆', '懷': '怀', '憂': '忧', '愛': '爱',
	'慣': '惯', '戰': '战', '戲': '戏', '戶': '户', '擴': '扩',
	'掃': '扫', '揚': '扬', '擾': '扰', '撫': '抚', '擺': '摆',
	'拋': '抛', '摶': '抟', '搶': '抢', '護': '护', '報': '报',
	'擔': '担', '擬': '拟', '攏': '拢', '揀': '拣', '擁': '拥',
	'攔': '拦', '擰': '拧', '撥': '拨', '擇': '择', '掛': '挂',
	'撓': '挠', '擋': '挡', '撿': '捡', '換': '换', '搗': '捣',
	'據': '据', '損': '损', '撈': '捞', '捨': '舍', '攬': '揽',
	'攙': '搀', '攜': '携', '攝': '摄', '攤': '摊', '數': '数',
	'齋': '斋', '鬥': '斗', '斷': '断', '無': '无', '舊': '旧',
	'時': '时', '曠': '旷', '晝': '昼', '顯': '显', '晉': '晋',
	'曬': '晒', '曉': '晓', '暈': '晕', '暉': '晖', '暫': '暂',
	'曆': '历', '術': '术', '樸': '朴', '機': '机', '殺': '杀',
	'雜': '杂', '權': '权', '條': '条', '極': '极', '構': '构',
	'樅': '枞', '樞': '枢', '棗': '枣', '櫪': '枥', '梘': '枧',
	'棖': '枨', '槍': '枪', '楓': '枫', '梟': '枭', '檸': '柠',
	'檉': '柽', '梔': '栀', '標': '标', '棧': '栈', '櫛': '栉',
	'櫳': '栊', '棟': '栋', '樹': '树', '檢': '检', '樣': '样',
	'橋': '桥', '歐': '欧', '歡': '欢', '欽': '钦', '歎': '叹',
	'殘': '残', '殲': '歼', '氣': '气', '氫': '氢', '氬': '氩',
	'漢': '汉', '湯': '汤', '洶': '汹', '溝': '沟', '沒': '没',
	'灃': '沣', '漚': '沤', '瀝': '沥', '淪': '沦', '滄': '沧',
	'潔': '洁', '灑': '洒', '澆': '浇', '濁': '浊', '測': '测',
	'濟': '济', '瀏': '浏', '渾': '浑', '濃': '浓', '湧': '涌',
	'濤': '涛', '澇': '涝', '淚': '泪', '漲': '涨', '滲': '渗',
	'溫': '温', '灣': '湾', '濕': '湿', '潰': '溃', '滅': '灭',
	'燈': '灯', '靈': '灵', '災': '灾', '燦': '灿', '煬': '炀',
	'爐': '炉', '煉': '炼', '煩': '烦', '燒': '烧', '燁': '烨',
	'燭': '烛', '煙': '烟', '熱': '热', '爺': '爷', '牘': '牍',
	'犢': '犊', '狀': '状', '獷': '犷', '獨': '独', '狹': '狭',
	'獅': '狮', '獄': '狱', '猶': '犹', '玀': '猡', '環': '环',
	'現': '现', '璽': '玺', '瑪': '玛', '瑣': '琐', '瓊': '琼',
	'畫': '画', '暢': '畅', '療': '疗', '瘧': '疟', '癘': '疠',
	'瘍': '疡', '瘡': '疮', '瘋': '疯', '皚': '皑', '蓋': '盖',
	'盜': '盗', '監': '监', '盤': '盘', '盡': '尽', '眥': '眦',
	'礦': '矿', '碼': '码', '磚': '砖', '硯': '砚', '礎': '础',
	'禮': '礼', '禍': '祸', '稟': '禀', '種': '种', '積': '积',
	'稱': '称', '穢': '秽', '穩': '稳', '窮': '穷', '竊': '窃',
	'競': '竞', '筆': '笔', '筧': '笕', '箋': '笺', '籠': '笼',
	'築': '筑', '簡': '简', '類': '类', '籃': '篮', '糶': '粜',
	'糧': '粮', '緊': '紧', '纍': '累', '紅': '红', '紀': '纪',
	'約': '约', '級': '级', '紡': '纺', '純': '纯', '納': '纳',
	'縱': '纵', '紛': '纷', '紙': '纸', '紋': '纹', '線': '线',
	'練': '练', '組': '组', '細': '细', '織': '织', '終': '终', '絡': '络',
	'絆': '绊', '結': '结', '繞': '绕', '絕': '绝', '絞': '绞',
	'統': '统', '絨': '绒', '經': '经', '綜': '综', '綠': '绿',
	'網': '网', '維': '维', '綱': '纲', '編': '编', '緣': '缘',
	'緯': '纬', '緩': '缓', '縮': '缩', '續': '续',
	'繩': '绳', '繳': '缴', '總': '总', '績': '绩', '繹': '绎',
	'繼': '继', '罰': '罚', '罷': '罢', '羅': '罗', '羆': '罴',
	'聖': '圣', '聰': '聪', '聯': '联', '聳': '耸', '職': '职',
	'肅': '肃', '腸': '肠', '膚': '肤', '腫': '肿', '脹': '胀',
	'脅': '胁', '腦': '脑', '膠': '胶', '臉': '脸', '膩': '腻',
	'臘': '腊', '輿': '舆', '艦': '舰', '艙': '舱', '節': '节',
	'芐': '苄', '蘆': '芦', '蒼': '苍', '蘇': '苏', '藥': '药',
	'蓮': '莲', '萊': '莱', '蘿': '萝', '螢': '萤', '營': '营',
	'蕭': '萧', '薩': '萨', '藍': '蓝', '蠟': '蜡', '蟲': '虫',
	'蝦': '虾', '蟻': '蚁', '蝕': '蚀', '蠻': '蛮', '補': '补',
	'裝': '装', '裏': '里', '褲': '裤', '襯': '衬', '見': '见',
	'觀': '观', '規': '规', '視': '视', '覽': '览', '覺': '觉',
	'觸': '触', '訁': '讠', '誇': '夸', '謀': '谋', '諾': '诺',
	'謠': '谣', '謊': '谎', '譜': '谱', '豎': '竖', '豬': '猪',
	'貓': '猫', '賠': '赔', '贏': '赢', '趕': '赶', '趨': '趋',
	'躍': '跃', '踐': '践', '蹺': '跷', '軀': '躯', '輝': '辉',
	'輩': '辈', '輯': '辑', '辭': '辞', '辯': '辩', '遼': '辽',
	'遺': '遗', '郵': '邮', '鄰': '邻', '鄭': '郑', '鄧': '邓',
	'酈': '郦', '釀': '酿', '鑰': '钥', '針': '针', '釘': '钉',
	'釣': '钓', '銅': '铜', '鋁': '铝', '銳': '锐', '鋒': '锋',
	'鋼': '钢', '鍋': '锅', '鍍': '镀', '鎮': '镇', '鏈': '链',
	'鏟': '铲', '鐘': '钟', '鑄': '铸', '閑': '闲', '閏': '闰',
	'閘': '闸', '閨': '闺', '闊': '阔', '闖': '闯', '陣': '阵',
	'階': '阶', '隴': '陇', '隸': '隶', '雖': '虽', '霧': '雾',
	'霽': '霁', '靂': '雳', '靜': '静', '韻': '韵', '頃': '顷',
	'顏': '颜', '顫': '颤', '颳': '刮', '飄': '飘', '餅': '饼',
	'餃': '饺', '餒': '馁', '駁': '驳', '駕': '驾', '駛': '驶',
	'騎': '骑', '騙': '骗', '騰': '腾', '驅': '驱', '驕': '骄',
	'髒': '脏', '鬆': '松', '鬧': '闹', '魎': '魉', '魯': '鲁',
	'鯉': '鲤', '鴨': '鸭', '鴻': '鸿', '鵝': '鹅', '鷗': '鸥',
	'鹽': '盐', '麵': '面', '黃': '黄', '黽': '黾', '鼉': '鼍',
}
